// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package report

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"gitlab.com/postmarketOS/gnss_report/internal/fix"
)

// MQTTMirror publishes delivered fixes as retained JSON messages. It connects
// per fix since the node sleeps between attempts.
type MQTTMirror struct {
	opts    *mqtt.ClientOptions
	topic   string
	timeout time.Duration
}

type mirrorMessage struct {
	Timestamp string  `json:"timestamp"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	DeviceID  int     `json:"device_id"`
	Raw       string  `json:"raw"`
}

func NewMQTTMirror(broker, clientID, topic string, timeout time.Duration) *MQTTMirror {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(timeout).
		SetAutoReconnect(false)

	return &MQTTMirror{
		opts:    opts,
		topic:   topic,
		timeout: timeout,
	}
}

func (m *MQTTMirror) Publish(f fix.GeoFix, p Payload) (err error) {
	payload, err := json.Marshal(mirrorMessage{
		Timestamp: f.Timestamp,
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		DeviceID:  p.DeviceID,
		Raw:       p.Coordinates,
	})
	if err != nil {
		return errors.Wrap(err, "report/MQTTMirror.Publish")
	}

	client := mqtt.NewClient(m.opts)
	token := client.Connect()
	if !token.WaitTimeout(m.timeout) {
		return errors.New("report/MQTTMirror.Publish: connect timed out")
	}
	if err = token.Error(); err != nil {
		return errors.Wrap(err, "report/MQTTMirror.Publish: connect")
	}
	defer client.Disconnect(250)

	token = client.Publish(m.topic, 1, true, payload)
	if !token.WaitTimeout(m.timeout) {
		return errors.New("report/MQTTMirror.Publish: publish timed out")
	}
	if err = token.Error(); err != nil {
		return errors.Wrap(err, "report/MQTTMirror.Publish")
	}

	return
}
