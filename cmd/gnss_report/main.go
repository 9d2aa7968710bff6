// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"gitlab.com/postmarketOS/gnss_report/internal/at"
	"gitlab.com/postmarketOS/gnss_report/internal/config"
	"gitlab.com/postmarketOS/gnss_report/internal/fix"
	"gitlab.com/postmarketOS/gnss_report/internal/gnss"
	"gitlab.com/postmarketOS/gnss_report/internal/link"
	"gitlab.com/postmarketOS/gnss_report/internal/report"
)

var (
	ConfFile string
	Debug    bool
	Once     bool
)

func main() {
	app := &cli.App{
		Name:  "gnss_report",
		Usage: "acquire a GNSS fix from an AT modem and report it to a collector",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "configuration file to use",
				Value:       "/etc/gnss_report.conf",
				Aliases:     []string{"c"},
				Destination: &ConfFile,
				EnvVars:     []string{"GNSS_REPORT_CONFIG"},
			},
			&cli.BoolFlag{
				Name:        "debug",
				Usage:       "development logging",
				Destination: &Debug,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run acquisition cycles until interrupted",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "once",
						Usage:       "run a single cycle and exit",
						Destination: &Once,
					},
				},
				Action: func(ctx *cli.Context) error {
					logger, err := newLogger(Debug)
					if err != nil {
						return err
					}
					defer logger.Sync()

					conf, err := config.Parse(ConfFile)
					if err != nil {
						return err
					}
					return run(conf, logger, Once)
				},
			},
			{
				Name:      "parse",
				Usage:     "parse a +CGPSINFO reply given as argument or on stdin",
				ArgsUsage: "[REPLY]",
				Action: func(ctx *cli.Context) error {
					reply := ctx.Args().First()
					if reply == "" {
						b, err := io.ReadAll(os.Stdin)
						if err != nil {
							return err
						}
						reply = string(b)
					}
					return parse(os.Stdout, reply)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(conf *config.Config, logger *zap.Logger, once bool) error {
	checker := link.NewChecker(conf.Wifi.Interface, conf.Wifi.SSID, conf.Wifi.Password, logger)

	client := report.NewClient(conf.Report.Endpoint, conf.Report.DeviceID,
		&http.Client{Timeout: conf.Report.Timeout}, logger)
	if conf.Report.MQTTBroker != "" {
		client.SetMirror(report.NewMQTTMirror(conf.Report.MQTTBroker, conf.Report.MQTTClientID,
			conf.Report.MQTTTopic, conf.Report.Timeout))
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	for {
		cycle(conf, checker, client, logger)
		if once {
			return nil
		}

		logger.Info("sleeping until next cycle", zap.Duration("interval", conf.CycleInterval))
		select {
		case sig := <-sigs:
			logger.Info("stopping", zap.Stringer("signal", sig))
			return nil
		case <-time.After(conf.CycleInterval):
		}
	}
}

// cycle is one wake period: bring the link up, then run one acquisition
// attempt. Nothing carries over to the next cycle.
func cycle(conf *config.Config, checker *link.Checker, client *report.Client, logger *zap.Logger) {
	if !checker.EnsureReady(conf.Wifi.ConnectTimeout) {
		logger.Warn("skipping GNSS, no network link")
		return
	}

	out, err := attempt(conf, client, logger)

	fields := []zap.Field{zap.Stringer("outcome", out)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	switch out {
	case fix.Delivered:
		logger.Info("acquisition finished", fields...)
	case fix.NoFix:
		logger.Warn("acquisition finished", fields...)
	default:
		logger.Error("acquisition finished", fields...)
	}
}

// attempt opens the serial port and runs one acquisition. A port that cannot
// be opened is a TransportFault like any other serial failure.
func attempt(conf *config.Config, rep gnss.Reporter, logger *zap.Logger) (fix.Outcome, error) {
	tr := at.NewSerial(conf.Serial.DevicePath, conf.Serial.BaudRate, conf.Serial.ReadTimeout, logger)
	if err := tr.Open(); err != nil {
		return fix.TransportFault, err
	}

	return gnss.NewAcquirer(tr, rep, conf.Timing, logger).Run(context.Background())
}

type parsed struct {
	Timestamp string  `json:"timestamp"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Position  string  `json:"position"`
	Raw       string  `json:"raw"`
}

// parse accepts either a full modem reply or a bare +CGPSINFO payload.
func parse(w io.Writer, reply string) error {
	line, err := fix.ExtractLine(reply)
	if err != nil {
		if !strings.Contains(reply, ",") {
			return err
		}
		line = strings.TrimSpace(reply)
	}

	f, err := fix.Parse(line)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(parsed{
		Timestamp: f.Timestamp,
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Position:  f.String(),
		Raw:       line,
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
