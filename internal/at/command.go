// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package at

import "strings"

// Reply tokens
const (
	OK         = "OK"
	ERROR      = "ERROR"
	SimRemoved = "+CPIN: SIM REMOVED"

	// NoFix is what the modem returns in the +CGPSINFO payload before it has
	// a lock: every field empty.
	NoFix = ",,,,,,,,"
)

// Command is a single AT command line, e.g. AT+CGNSSPWR=1
type Command struct {
	Name   string
	Params []string
}

var (
	Ping       = Command{}
	Reset      = Command{Name: "+CFUN", Params: []string{"1", "1"}}
	GnssOn     = Command{Name: "+CGNSSPWR", Params: []string{"1"}}
	GnssOff    = Command{Name: "+CGNSSPWR", Params: []string{"0"}}
	GpsInfoCmd = Command{Name: "+CGPSINFO"}
)

func (c Command) String() string {
	cmd := "AT" + c.Name
	if len(c.Params) > 0 {
		cmd = cmd + "=" + strings.Join(c.Params, ",")
	}

	return cmd
}

// Acked reports whether reply contains the final OK result code.
func Acked(reply string) bool {
	return strings.Contains(reply, OK)
}
