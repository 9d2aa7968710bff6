// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"gitlab.com/postmarketOS/gnss_report/internal/fix"
)

var ErrDelivery = errors.New("delivery failed")

// Doer sends a single HTTP request, *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Mirror receives a copy of every delivered fix. Failures are logged and do
// not change the outcome.
type Mirror interface {
	Publish(f fix.GeoFix, p Payload) (err error)
}

// Payload is the body POSTed to the collector. Coordinates carries the
// +CGPSINFO payload as sent by the modem, with the marker stripped.
type Payload struct {
	Timestamp   string `json:"fecha"`
	Coordinates string `json:"coordenadas"`
	DeviceID    int    `json:"dispositivo_id"`
}

// Client submits fixes to the collector, once, without retrying.
type Client struct {
	endpoint string
	deviceID int
	http     Doer
	mirror   Mirror
	log      *zap.Logger
}

func NewClient(endpoint string, deviceID int, doer Doer, log *zap.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		deviceID: deviceID,
		http:     doer,
		log:      log,
	}
}

// SetMirror installs m, nil disables mirroring.
func (c *Client) SetMirror(m Mirror) {
	c.mirror = m
}

// Report parses the raw +CGPSINFO reply and POSTs it. A reply that does not
// hold a usable fix yields NoFix, with the reason as error, and no request is
// made.
func (c *Client) Report(ctx context.Context, reply string) (fix.Outcome, error) {
	line, err := fix.ExtractLine(reply)
	if err != nil {
		c.log.Warn("no fix line in reply", zap.String("reply", reply))
		return fix.NoFix, errors.Wrap(err, "report/Client.Report")
	}

	f, err := fix.Parse(line)
	if err != nil {
		c.log.Warn("invalid fix", zap.String("line", line), zap.Error(err))
		return fix.NoFix, errors.Wrap(err, "report/Client.Report")
	}

	p := Payload{
		Timestamp:   f.Timestamp,
		Coordinates: line,
		DeviceID:    c.deviceID,
	}
	if err = c.post(ctx, p); err != nil {
		c.log.Error("POST failed", zap.String("endpoint", c.endpoint), zap.Error(err))
		return fix.DeliveryFailed, err
	}

	if c.mirror != nil {
		if err := c.mirror.Publish(f, p); err != nil {
			c.log.Warn("mirror publish failed", zap.Error(err))
		}
	}

	return fix.Delivered, nil
}

func (c *Client) post(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return errors.Wrapf(ErrDelivery, "report/Client.post: marshal: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(ErrDelivery, "report/Client.post: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Info("sending POST", zap.String("endpoint", c.endpoint), zap.ByteString("body", body))
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(ErrDelivery, "report/Client.post: %v", err)
	}
	defer resp.Body.Close()

	// the collector echoes the stored record, only useful for debugging
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrapf(ErrDelivery, "report/Client.post: status %d: %s", resp.StatusCode, respBody)
	}

	c.log.Info("POST sent", zap.Int("status", resp.StatusCode), zap.ByteString("response", respBody))
	return nil
}
