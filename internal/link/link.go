// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package link

import (
	"context"
	"math"
	"net"
	"os/exec"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Checker brings up the uplink used to reach the collector. With an SSID
// configured it asks NetworkManager to associate first, otherwise it only
// waits for an address on the interface.
type Checker struct {
	iface    string
	ssid     string
	password string
	interval time.Duration
	// disconnectTimeout bounds the cleanup after a failed association, it
	// runs once the EnsureReady deadline has already passed.
	disconnectTimeout time.Duration
	log               *zap.Logger

	run   func(ctx context.Context, name string, args ...string) ([]byte, error)
	ready func(iface string) (bool, error)
}

func NewChecker(iface, ssid, password string, log *zap.Logger) *Checker {
	return &Checker{
		iface:    iface,
		ssid:     ssid,
		password: password,
		interval:          time.Second,
		disconnectTimeout: 5 * time.Second,
		log:               log,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
		ready: hasAddress,
	}
}

// EnsureReady returns true once the link has a usable address, false if that
// did not happen within timeout. The association attempt counts against the
// same timeout. A failed association takes the interface down again so a
// wedged radio does not stay up until the next cycle.
func (c *Checker) EnsureReady(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	if ok, _ := c.ready(c.iface); ok {
		return true
	}

	if c.ssid != "" {
		c.connect(deadline)
	}

	for {
		ok, err := c.ready(c.iface)
		if err != nil {
			c.log.Debug("link check failed", zap.Error(err))
		}
		if ok {
			c.log.Info("link ready", zap.String("interface", c.iface))
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		if remaining > c.interval {
			remaining = c.interval
		}
		time.Sleep(remaining)
	}

	c.log.Error("link not ready", zap.String("interface", c.iface), zap.Duration("timeout", timeout))
	if c.ssid != "" && c.iface != "" {
		c.disconnect()
	}
	return false
}

// connect asks NetworkManager to associate, giving up at deadline. nmcli
// itself would otherwise wait up to 90s for activation.
func (c *Checker) connect(deadline time.Time) {
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	wait := int(math.Ceil(time.Until(deadline).Seconds()))
	if wait < 1 {
		wait = 1
	}

	c.log.Info("connecting to WiFi", zap.String("ssid", c.ssid), zap.String("interface", c.iface))
	args := []string{"--wait", strconv.Itoa(wait), "dev", "wifi", "connect", c.ssid}
	if c.password != "" {
		args = append(args, "password", c.password)
	}
	if c.iface != "" {
		args = append(args, "ifname", c.iface)
	}
	if out, err := c.run(ctx, "nmcli", args...); err != nil {
		// not fatal, the link may still come up on its own
		c.log.Warn("nmcli connect failed", zap.Error(err), zap.ByteString("output", out))
	}
}

func (c *Checker) disconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), c.disconnectTimeout)
	defer cancel()

	c.log.Info("disconnecting WiFi to avoid lockups", zap.String("interface", c.iface))
	wait := int(math.Ceil(c.disconnectTimeout.Seconds()))
	if out, err := c.run(ctx, "nmcli", "--wait", strconv.Itoa(wait), "dev", "disconnect", c.iface); err != nil {
		c.log.Warn("nmcli disconnect failed", zap.Error(err), zap.ByteString("output", out))
	}
}

// hasAddress reports whether iface, or any non-loopback interface when iface
// is empty, is up with a global unicast address.
func hasAddress(iface string) (bool, error) {
	var ifaces []net.Interface
	if iface != "" {
		i, err := net.InterfaceByName(iface)
		if err != nil {
			return false, errors.Wrap(err, "link.hasAddress")
		}
		ifaces = []net.Interface{*i}
	} else {
		all, err := net.Interfaces()
		if err != nil {
			return false, errors.Wrap(err, "link.hasAddress")
		}
		ifaces = all
	}

	for _, i := range ifaces {
		if i.Flags&net.FlagUp == 0 || i.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := i.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.IsGlobalUnicast() {
				return true, nil
			}
		}
	}

	return false, nil
}
