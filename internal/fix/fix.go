// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package fix

import (
	"fmt"
	"time"

	nmea "github.com/adrianmo/go-nmea"
)

// TimeLayout is the layout of GeoFix.Timestamp
const TimeLayout = "2006-01-02T15:04:05"

// GeoFix is a single position reading converted to decimal degrees. It is
// only ever built by Parse from a fully validated line.
type GeoFix struct {
	Latitude  float64
	Longitude float64
	Timestamp string
}

// Time returns the fix timestamp in UTC, the modem reports UTC.
func (f GeoFix) Time() (time.Time, error) {
	return time.ParseInLocation(TimeLayout, f.Timestamp, time.UTC)
}

func (f GeoFix) String() string {
	return fmt.Sprintf("%s %s%s %s%s",
		f.Timestamp,
		nmea.FormatDMS(f.Latitude), hemisphere(f.Latitude, "N", "S"),
		nmea.FormatDMS(f.Longitude), hemisphere(f.Longitude, "E", "W"),
	)
}

func hemisphere(v float64, pos, neg string) string {
	if v < 0 {
		return neg
	}
	return pos
}

// Outcome is the result of one acquisition attempt. It is only used for
// logging, nothing is kept between attempts.
type Outcome int

const (
	Delivered Outcome = iota
	NoFix
	ModemUnresponsive
	DeliveryFailed
	TransportFault
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "Delivered"
	case NoFix:
		return "NoFix"
	case ModemUnresponsive:
		return "ModemUnresponsive"
	case DeliveryFailed:
		return "DeliveryFailed"
	case TransportFault:
		return "TransportFault"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}
