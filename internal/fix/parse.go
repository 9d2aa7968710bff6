// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package fix

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Marker prefixes the fix report line in a +CGPSINFO reply.
const Marker = "+CGPSINFO:"

var (
	ErrNotFound           = errors.New("no " + Marker + " line in reply")
	ErrInsufficientFields = errors.New("insufficient fields")
	ErrEmptyField         = errors.New("empty field")
	ErrMalformedField     = errors.New("malformed field")
)

// Field positions in the +CGPSINFO payload
const (
	fieldLat = iota
	fieldNS
	fieldLon
	fieldEW
	fieldDate
	fieldTime

	minFields
)

// ExtractLine returns the first line of reply that starts with Marker, with
// the marker removed and surrounding whitespace trimmed.
func ExtractLine(reply string) (line string, err error) {
	scanner := bufio.NewScanner(strings.NewReader(reply))
	for scanner.Scan() {
		l := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(l, Marker) {
			return strings.TrimSpace(strings.TrimPrefix(l, Marker)), nil
		}
	}

	return "", ErrNotFound
}

// Parse converts a +CGPSINFO payload, e.g.
//
//	2234.0000,N,11354.0000,E,010124,235959.0,100.0,0.0,0.0
//
// into a GeoFix. Latitude is ddmm.mmmm, longitude dddmm.mmmm, date DDMMYY and
// time HHMMSS[.s]. The modem's no-fix payload (all fields empty) is rejected
// with ErrEmptyField.
func Parse(line string) (f GeoFix, err error) {
	fields := strings.Split(line, ",")
	if len(fields) < minFields {
		err = errors.Wrapf(ErrInsufficientFields, "fix.Parse: got %d, want at least %d", len(fields), minFields)
		return
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	for _, i := range []int{fieldLat, fieldLon, fieldDate, fieldTime} {
		if fields[i] == "" {
			err = errors.Wrapf(ErrEmptyField, "fix.Parse: field %d", i)
			return
		}
	}

	lat, err := degrees(fields[fieldLat], 2)
	if err == nil && lat > 90 {
		err = errors.Wrapf(ErrMalformedField, "%q out of range", fields[fieldLat])
	}
	if err != nil {
		err = errors.Wrap(err, "fix.Parse: latitude")
		return
	}
	if fields[fieldNS] == "S" {
		lat = -lat
	}

	lon, err := degrees(fields[fieldLon], 3)
	if err == nil && lon > 180 {
		err = errors.Wrapf(ErrMalformedField, "%q out of range", fields[fieldLon])
	}
	if err != nil {
		err = errors.Wrap(err, "fix.Parse: longitude")
		return
	}
	if fields[fieldEW] == "W" {
		lon = -lon
	}

	ts, err := timestamp(fields[fieldDate], fields[fieldTime])
	if err != nil {
		err = errors.Wrap(err, "fix.Parse")
		return
	}

	return GeoFix{Latitude: lat, Longitude: lon, Timestamp: ts}, nil
}

// degrees decodes a degrees+minutes value whose first width characters are
// whole degrees and the remainder decimal minutes.
func degrees(s string, width int) (float64, error) {
	if len(s) <= width {
		return 0, errors.Wrapf(ErrMalformedField, "%q too short", s)
	}
	deg, err := strconv.ParseUint(s[:width], 10, 16)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedField, "degrees %q", s[:width])
	}
	minutes, err := strconv.ParseFloat(s[width:], 64)
	if err != nil || !(minutes >= 0 && minutes < 60) {
		return 0, errors.Wrapf(ErrMalformedField, "minutes %q", s[width:])
	}

	return float64(deg) + minutes/60, nil
}

// timestamp formats DDMMYY and HHMMSS[.s] as YYYY-MM-DDTHH:MM:SS. Fractional
// seconds are dropped.
func timestamp(date, clock string) (string, error) {
	d, err := pairs(date, "date")
	if err != nil {
		return "", err
	}
	c, err := pairs(clock, "time")
	if err != nil {
		return "", err
	}

	day, month, year := d[0], d[1], d[2]
	hour, minute, second := c[0], c[1], c[2]
	// time.Date normalises 31 Feb into March, a round trip catches it
	t := time.Date(2000+year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != 2000+year || int(t.Month()) != month || t.Day() != day {
		return "", errors.Wrapf(ErrMalformedField, "date %q", date)
	}
	// 60 allows for a leap second
	if hour > 23 || minute > 59 || second > 60 {
		return "", errors.Wrapf(ErrMalformedField, "time %q", clock)
	}

	return fmt.Sprintf("20%02d-%02d-%02dT%02d:%02d:%02d", year, month, day, hour, minute, second), nil
}

// pairs reads the first three two-digit numbers of s.
func pairs(s, name string) (out [3]int, err error) {
	if len(s) < 6 {
		err = errors.Wrapf(ErrMalformedField, "%s %q too short", name, s)
		return
	}
	for i := range out {
		var n uint64
		n, err = strconv.ParseUint(s[2*i:2*i+2], 10, 8)
		if err != nil {
			err = errors.Wrapf(ErrMalformedField, "%s %q", name, s)
			return
		}
		out[i] = int(n)
	}

	return
}
