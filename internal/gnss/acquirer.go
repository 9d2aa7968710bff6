// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package gnss

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gitlab.com/postmarketOS/gnss_report/internal/at"
	"gitlab.com/postmarketOS/gnss_report/internal/fix"
)

var ErrModemUnresponsive = errors.New("modem did not acknowledge")

// Acquirer runs one fix acquisition attempt against a SIM7600-style modem:
// ping, reset, GNSS power on, poll for a lock, read the fix, hand it to the
// Reporter and power the GNSS subsystem off again.
type Acquirer struct {
	cmd    Commander
	rep    Reporter
	timing Timing
	sleep  func(time.Duration)
	log    *zap.Logger
	state  State
}

func NewAcquirer(cmd Commander, rep Reporter, timing Timing, log *zap.Logger) *Acquirer {
	return &Acquirer{
		cmd:    cmd,
		rep:    rep,
		timing: timing,
		sleep:  time.Sleep,
		log:    log,
		state:  Idle,
	}
}

// State returns the state the last Run stopped in, PoweredOff once Run has
// returned.
func (a *Acquirer) State() State {
	return a.state
}

// Run performs the attempt. Whatever happens the GNSS subsystem is powered
// off and the command channel closed before Run returns. The returned error
// carries the detail behind any outcome other than Delivered and NoFix, and
// the parse failure reason when the reporter rejected the fix.
func (a *Acquirer) Run(ctx context.Context) (out fix.Outcome, err error) {
	defer a.powerOff()

	a.enter(Checking)
	reply, err := a.cmd.Send(at.Ping.String(), a.timing.PingWait)
	if err != nil {
		return fix.TransportFault, errors.Wrap(err, "gnss/Acquirer.Run: ping")
	}
	// A modem without a SIM still answers AT commands, GNSS works without one.
	if !at.Acked(reply) && !strings.Contains(reply, at.SimRemoved) {
		return fix.ModemUnresponsive, errors.Wrapf(ErrModemUnresponsive, "gnss/Acquirer.Run: ping reply %q", reply)
	}

	a.enter(Resetting)
	if err = a.expectAck(at.Reset, a.timing.ResetWait); err != nil {
		return outcome(err), err
	}

	a.enter(PoweringOn)
	if err = a.expectAck(at.GnssOn, a.timing.PowerOnWait); err != nil {
		return outcome(err), err
	}

	a.enter(PollingForFix)
	if err = a.poll(); err != nil {
		return fix.TransportFault, err
	}

	a.enter(Reading)
	reply, err = a.cmd.Send(at.GpsInfoCmd.String(), a.timing.ReadWait)
	if err != nil {
		return fix.TransportFault, errors.Wrap(err, "gnss/Acquirer.Run: read fix")
	}
	if strings.Contains(reply, at.ERROR) || strings.Contains(reply, at.NoFix) {
		a.log.Warn("no GNSS data available", zap.String("reply", reply))
		return fix.NoFix, nil
	}

	a.log.Info("GNSS data obtained", zap.String("reply", reply))
	return a.rep.Report(ctx, reply)
}

// poll queries the fix until the modem reports something other than the
// empty sentinel or the attempt budget is spent. Running out of attempts is
// not an error, the final read may still return usable data.
func (a *Acquirer) poll() error {
	for attempt := 1; attempt <= a.timing.PollAttempts; attempt++ {
		a.sleep(a.timing.PollInterval)

		reply, err := a.cmd.Send(at.GpsInfoCmd.String(), a.timing.PollWait)
		if err != nil {
			return errors.Wrapf(err, "gnss/Acquirer.poll: attempt %d", attempt)
		}
		if reply != "" && !strings.Contains(reply, at.NoFix) {
			a.log.Info("GNSS lock acquired", zap.Int("attempt", attempt))
			return nil
		}
		a.log.Info("no GNSS lock yet",
			zap.Int("attempt", attempt),
			zap.Int("attempts", a.timing.PollAttempts),
		)
	}

	a.log.Warn("poll budget exhausted without lock", zap.Int("attempts", a.timing.PollAttempts))
	return nil
}

func (a *Acquirer) expectAck(cmd at.Command, wait time.Duration) error {
	reply, err := a.cmd.Send(cmd.String(), wait)
	if err != nil {
		return errors.Wrapf(err, "gnss/Acquirer.expectAck: %s", cmd)
	}
	if !at.Acked(reply) {
		return errors.Wrapf(ErrModemUnresponsive, "gnss/Acquirer.expectAck: %s replied %q", cmd, reply)
	}

	return nil
}

func (a *Acquirer) powerOff() {
	a.enter(PoweredOff)

	if _, err := a.cmd.Send(at.GnssOff.String(), a.timing.PowerOffWait); err != nil {
		a.log.Error("GNSS power off failed", zap.Error(err))
	}
	if err := a.cmd.Close(); err != nil {
		a.log.Error("release serial port failed", zap.Error(err))
	}
}

func (a *Acquirer) enter(s State) {
	a.log.Debug("state transition", zap.Stringer("from", a.state), zap.Stringer("to", s))
	a.state = s
}

func outcome(err error) fix.Outcome {
	if errors.Is(err, ErrModemUnresponsive) {
		return fix.ModemUnresponsive
	}
	return fix.TransportFault
}
