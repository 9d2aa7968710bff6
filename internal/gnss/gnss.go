// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package gnss

import (
	"context"
	"time"

	"gitlab.com/postmarketOS/gnss_report/internal/fix"
)

// Commander is the command channel to the modem, implemented by
// at.Transport.
type Commander interface {
	Send(cmd string, wait time.Duration) (reply string, err error)
	Close() (err error)
}

// Reporter delivers a raw fix reply, implemented by report.Client.
type Reporter interface {
	Report(ctx context.Context, reply string) (fix.Outcome, error)
}

// Timing holds the waits and poll budget of an acquisition attempt. A cold
// receiver can take minutes to see enough satellites, hence the defaults.
type Timing struct {
	PingWait     time.Duration `toml:"ping_wait" yaml:"ping_wait" env:"PING_WAIT"`
	ResetWait    time.Duration `toml:"reset_wait" yaml:"reset_wait" env:"RESET_WAIT"`
	PowerOnWait  time.Duration `toml:"power_on_wait" yaml:"power_on_wait" env:"POWER_ON_WAIT"`
	PollAttempts int           `toml:"poll_attempts" yaml:"poll_attempts" env:"POLL_ATTEMPTS"`
	PollInterval time.Duration `toml:"poll_interval" yaml:"poll_interval" env:"POLL_INTERVAL"`
	PollWait     time.Duration `toml:"poll_wait" yaml:"poll_wait" env:"POLL_WAIT"`
	ReadWait     time.Duration `toml:"read_wait" yaml:"read_wait" env:"READ_WAIT"`
	PowerOffWait time.Duration `toml:"power_off_wait" yaml:"power_off_wait" env:"POWER_OFF_WAIT"`
}

func DefaultTiming() Timing {
	return Timing{
		PingWait:     5 * time.Second,
		ResetWait:    5 * time.Second,
		PowerOnWait:  5 * time.Second,
		PollAttempts: 10,
		PollInterval: 30 * time.Second,
		PollWait:     5 * time.Second,
		ReadWait:     10 * time.Second,
		PowerOffWait: 2 * time.Second,
	}
}

type State int

const (
	Idle State = iota
	Checking
	Resetting
	PoweringOn
	PollingForFix
	Reading
	PoweredOff
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Checking:
		return "Checking"
	case Resetting:
		return "Resetting"
	case PoweringOn:
		return "PoweringOn"
	case PollingForFix:
		return "PollingForFix"
	case Reading:
		return "Reading"
	case PoweredOff:
		return "PoweredOff"
	}
	return "Unknown"
}
