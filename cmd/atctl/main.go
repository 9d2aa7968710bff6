// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitlab.com/postmarketOS/gnss_report/internal/at"
)

func usage() {
	flag.CommandLine.Usage()
}

func main() {
	var devPath string
	flag.StringVar(&devPath, "d", "/dev/ttyS2", "Path to the modem serial device")
	var baud int
	flag.IntVar(&baud, "b", 115200, "Baud rate")
	var readTimeout time.Duration
	flag.DurationVar(&readTimeout, "t", 3*time.Second, "Serial read timeout")
	var wait time.Duration
	flag.DurationVar(&wait, "w", 5*time.Second, "Time to wait for the reply")
	var verbose bool
	flag.BoolVar(&verbose, "v", false, "Log serial traffic.")

	var help bool
	flag.BoolVar(&help, "h", false, "Print help and quit.")

	flag.Usage = func() {
		fmt.Println("usage: atctl [OPTION...] COMMAND...")
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println("Commands are sent in order, e.g.:")
		fmt.Printf("  %-24s\t%s\n", "AT", "Check the modem answers.")
		fmt.Printf("  %-24s\t%s\n", "AT+CGNSSPWR=1", "Power on the GNSS subsystem.")
		fmt.Printf("  %-24s\t%s\n", "AT+CGPSINFO", "Query the current fix.")
	}

	flag.Parse()

	if help || flag.NArg() == 0 {
		usage()
		return
	}

	logger := zap.NewNop()
	if verbose {
		logger, _ = zap.NewDevelopment()
	}

	tr := at.NewSerial(devPath, baud, readTimeout, logger)
	if err := tr.Open(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer tr.Close()

	for _, cmd := range flag.Args() {
		reply, err := tr.Send(strings.TrimSpace(cmd), wait)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			tr.Close()
			os.Exit(1)
		}
		fmt.Printf("> %s\n%s\n", cmd, reply)
	}
}
