// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package at

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// ErrTransport marks an I/O failure on the serial channel, as opposed to a
// modem that simply did not answer.
var ErrTransport = errors.New("serial transport fault")

// readSize is large enough for any single reply to the commands issued here,
// +CGPSINFO being the longest at well under 128 bytes.
const readSize = 1024

// Transport sends AT commands to a modem attached to a serial port and
// collects whatever it answers within a fixed wait window.
type Transport struct {
	path        string
	mode        serial.Mode
	readTimeout time.Duration

	port  io.ReadWriteCloser
	sleep func(time.Duration)
	log   *zap.Logger
}

// NewSerial returns a Transport for the UART at path. The port is not opened
// until Open is called.
func NewSerial(path string, baud int, readTimeout time.Duration, log *zap.Logger) *Transport {
	return &Transport{
		path: path,
		mode: serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		readTimeout: readTimeout,
		sleep:       time.Sleep,
		log:         log,
	}
}

// New wraps an already open channel. Close closes it.
func New(port io.ReadWriteCloser, log *zap.Logger) *Transport {
	return &Transport{
		path:  "<stream>",
		port:  port,
		sleep: time.Sleep,
		log:   log,
	}
}

func (t *Transport) Open() (err error) {
	p, err := serial.Open(t.path, &t.mode)
	if err != nil {
		return errors.Wrapf(ErrTransport, "at/Transport.Open: %s: %v", t.path, err)
	}

	// The hardware read timeout bounds the single read in Send independently
	// of the command wait.
	if err = p.SetReadTimeout(t.readTimeout); err != nil {
		p.Close()
		return errors.Wrapf(ErrTransport, "at/Transport.Open: set read timeout: %v", err)
	}
	t.port = p

	t.log.Info("serial port opened",
		zap.String("device", t.path),
		zap.Int("baud", t.mode.BaudRate),
		zap.Duration("readTimeout", t.readTimeout),
	)
	return
}

func (t *Transport) Close() (err error) {
	if t.port == nil {
		return
	}
	err = t.port.Close()
	t.port = nil
	if err != nil {
		return errors.Wrapf(ErrTransport, "at/Transport.Close: %v", err)
	}
	t.log.Info("serial port released", zap.String("device", t.path))
	return
}

// Send writes cmd followed by CRLF, waits for exactly wait and then reads
// whatever the modem has buffered. An empty reply is not an error; a failing
// read or write is, and wraps ErrTransport.
func (t *Transport) Send(cmd string, wait time.Duration) (reply string, err error) {
	if t.port == nil {
		return "", errors.Wrap(ErrTransport, "at/Transport.Send: port not open")
	}

	t.log.Info("sending command", zap.String("command", cmd), zap.Duration("wait", wait))
	if err = t.write([]byte(cmd)); err != nil {
		return
	}

	t.sleep(wait)

	buf := make([]byte, readSize)
	n, err := t.port.Read(buf)
	if err != nil && err != io.EOF {
		return "", errors.Wrapf(ErrTransport, "at/Transport.Send: read: %v", err)
	}
	err = nil

	reply = decode(buf[:n])
	if reply == "" {
		t.log.Warn("no reply received", zap.String("command", cmd))
		return
	}
	t.log.Info("reply received", zap.String("command", cmd), zap.String("reply", reply))
	return
}

func (t *Transport) write(data []byte) (err error) {
	// add crlf
	_, err = t.port.Write(append(data, 0x0D, 0x0A))
	if err != nil {
		return errors.Wrapf(ErrTransport, "at/Transport.write: %v", err)
	}

	return
}

// decode turns raw modem output into text, dropping invalid UTF-8 sequences
// and the stray NUL bytes some modules emit after waking up.
func decode(b []byte) string {
	s := strings.ToValidUTF8(string(b), "")
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(s)
}
