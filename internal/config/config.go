// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	toml "github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"gitlab.com/postmarketOS/gnss_report/internal/gnss"
)

type Config struct {
	Serial        SerialConfig  `toml:"serial" yaml:"serial"`
	Wifi          WifiConfig    `toml:"wifi" yaml:"wifi"`
	Report        ReportConfig  `toml:"report" yaml:"report"`
	Timing        gnss.Timing   `toml:"timing" yaml:"timing" envPrefix:"GNSS_REPORT_TIMING_"`
	CycleInterval time.Duration `toml:"cycle_interval" yaml:"cycle_interval" env:"GNSS_REPORT_CYCLE_INTERVAL"`
}

type SerialConfig struct {
	DevicePath  string        `toml:"device_path" yaml:"device_path" env:"GNSS_REPORT_SERIAL_DEVICE"`
	BaudRate    int           `toml:"baud_rate" yaml:"baud_rate" env:"GNSS_REPORT_SERIAL_BAUD"`
	ReadTimeout time.Duration `toml:"read_timeout" yaml:"read_timeout" env:"GNSS_REPORT_SERIAL_READ_TIMEOUT"`
}

type WifiConfig struct {
	Interface      string        `toml:"interface" yaml:"interface" env:"GNSS_REPORT_WIFI_INTERFACE"`
	SSID           string        `toml:"ssid" yaml:"ssid" env:"GNSS_REPORT_WIFI_SSID"`
	Password       string        `toml:"password" yaml:"password" env:"GNSS_REPORT_WIFI_PASSWORD"`
	ConnectTimeout time.Duration `toml:"connect_timeout" yaml:"connect_timeout" env:"GNSS_REPORT_WIFI_TIMEOUT"`
}

type ReportConfig struct {
	Endpoint     string        `toml:"endpoint" yaml:"endpoint" env:"GNSS_REPORT_ENDPOINT"`
	DeviceID     int           `toml:"device_id" yaml:"device_id" env:"GNSS_REPORT_DEVICE_ID"`
	Timeout      time.Duration `toml:"timeout" yaml:"timeout" env:"GNSS_REPORT_HTTP_TIMEOUT"`
	MQTTBroker   string        `toml:"mqtt_broker" yaml:"mqtt_broker" env:"GNSS_REPORT_MQTT_BROKER"`
	MQTTTopic    string        `toml:"mqtt_topic" yaml:"mqtt_topic" env:"GNSS_REPORT_MQTT_TOPIC"`
	MQTTClientID string        `toml:"mqtt_client_id" yaml:"mqtt_client_id" env:"GNSS_REPORT_MQTT_CLIENT_ID"`
}

// Parse reads file, TOML unless it ends in .yaml or .yml, then applies
// GNSS_REPORT_* environment overrides and defaults.
func Parse(file string) (c *Config, err error) {
	contents, err := os.ReadFile(file)
	if err != nil {
		err = fmt.Errorf("config.Parse(): %w", err)
		return
	}

	c = &Config{}

	switch filepath.Ext(file) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(contents, c)
	default:
		err = toml.Unmarshal(contents, c)
	}
	if err != nil {
		err = fmt.Errorf("config.Parse(): %w", err)
		return
	}

	if err = env.Parse(c); err != nil {
		err = fmt.Errorf("config.Parse(): %w", err)
		return
	}

	c.applyDefaults()

	if err = c.Validate(); err != nil {
		err = fmt.Errorf("config.Parse(): %w", err)
	}

	return
}

func (c *Config) applyDefaults() {
	if c.Serial.BaudRate <= 0 {
		c.Serial.BaudRate = 115200
	}
	if c.Serial.ReadTimeout <= 0 {
		c.Serial.ReadTimeout = 3 * time.Second
	}
	if c.Wifi.ConnectTimeout <= 0 {
		c.Wifi.ConnectTimeout = 15 * time.Second
	}
	if c.Report.Timeout <= 0 {
		c.Report.Timeout = 15 * time.Second
	}
	if c.Report.MQTTTopic == "" {
		c.Report.MQTTTopic = "gnss_report/fix"
	}
	if c.Report.MQTTClientID == "" {
		c.Report.MQTTClientID = fmt.Sprintf("gnss-report-%d", c.Report.DeviceID)
	}
	if c.CycleInterval <= 0 {
		c.CycleInterval = 10 * time.Minute
	}

	def := gnss.DefaultTiming()
	t := &c.Timing
	if t.PingWait <= 0 {
		t.PingWait = def.PingWait
	}
	if t.ResetWait <= 0 {
		t.ResetWait = def.ResetWait
	}
	if t.PowerOnWait <= 0 {
		t.PowerOnWait = def.PowerOnWait
	}
	if t.PollAttempts <= 0 {
		t.PollAttempts = def.PollAttempts
	}
	if t.PollInterval <= 0 {
		t.PollInterval = def.PollInterval
	}
	if t.PollWait <= 0 {
		t.PollWait = def.PollWait
	}
	if t.ReadWait <= 0 {
		t.ReadWait = def.ReadWait
	}
	if t.PowerOffWait <= 0 {
		t.PowerOffWait = def.PowerOffWait
	}
}

func (c *Config) Validate() error {
	if c.Serial.DevicePath == "" {
		return fmt.Errorf("serial.device_path is required")
	}
	if c.Report.Endpoint == "" {
		return fmt.Errorf("report.endpoint is required")
	}
	u, err := url.ParseRequestURI(c.Report.Endpoint)
	if err != nil {
		return fmt.Errorf("report.endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("report.endpoint: unsupported scheme %q", u.Scheme)
	}
	if c.Report.DeviceID <= 0 {
		return fmt.Errorf("report.device_id must be positive")
	}

	return nil
}
