// Copyright 2021 Clayton Craft <clayton@craftyguy.net>
// SPDX-License-Identifier: GPL-3.0-or-later

package fix

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLine(t *testing.T) {
	tests := map[string]struct {
		reply   string
		line    string
		errWant error
	}{
		"with ok": {
			reply: "+CGPSINFO: 2234.0000,N,11354.0000,E,010124,235959.0,100.0,0.0,0.0\r\n\r\nOK",
			line:  "2234.0000,N,11354.0000,E,010124,235959.0,100.0,0.0,0.0",
		},
		"echoed command first": {
			reply: "AT+CGPSINFO\r\n+CGPSINFO: 3723.2475,S,12158.3416,W,150325,101530.0,,,\r\nOK",
			line:  "3723.2475,S,12158.3416,W,150325,101530.0,,,",
		},
		"no fix sentinel": {
			reply: "+CGPSINFO: ,,,,,,,,\r\nOK",
			line:  ",,,,,,,,",
		},
		"first of two": {
			reply: "+CGPSINFO: 1,2\n+CGPSINFO: 3,4",
			line:  "1,2",
		},
		"missing marker": {
			reply:   "OK",
			errWant: ErrNotFound,
		},
		"marker not at line start": {
			reply:   "ERROR +CGPSINFO: 2234.0000,N",
			errWant: ErrNotFound,
		},
		"empty": {
			reply:   "",
			errWant: ErrNotFound,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			line, err := ExtractLine(test.reply)
			if test.errWant != nil {
				assert.ErrorIs(t, err, test.errWant)
				assert.Empty(t, line)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.line, line)
		})
	}
}

func TestParse(t *testing.T) {
	tests := map[string]struct {
		line      string
		lat       float64
		lon       float64
		timestamp string
		errWant   error
	}{
		"north east": {
			line:      "2234.0000,N,11354.0000,E,010124,235959.0,...,...,...",
			lat:       22.5667,
			lon:       113.9,
			timestamp: "2024-01-01T23:59:59",
		},
		"south west": {
			line:      "3723.2475,S,12158.3416,W,150325,101530.0,20.1,0.0,0.0",
			lat:       -37.387458,
			lon:       -121.972360,
			timestamp: "2025-03-15T10:15:30",
		},
		"two digit longitude degrees": {
			line:      "4807.0380,N,01131.0000,E,230394,123519,,,",
			lat:       48.1173,
			lon:       11.516667,
			timestamp: "2094-03-23T12:35:19",
		},
		"no fractional seconds": {
			line:      "0000.0000,N,00000.0000,E,311299,000000",
			timestamp: "2099-12-31T00:00:00",
		},
		"all empty": {
			line:    ",,,,,,,,",
			errWant: ErrEmptyField,
		},
		"empty time": {
			line:    "2234.0000,N,11354.0000,E,010124,,,,",
			errWant: ErrEmptyField,
		},
		"too few fields": {
			line:    "2234.0000,N,11354.0000,E,010124",
			errWant: ErrInsufficientFields,
		},
		"empty line": {
			line:    "",
			errWant: ErrInsufficientFields,
		},
		"garbage latitude": {
			line:    "22x4.0000,N,11354.0000,E,010124,235959.0",
			errWant: ErrMalformedField,
		},
		"latitude out of range": {
			line:    "9134.0000,N,11354.0000,E,010124,235959.0",
			errWant: ErrMalformedField,
		},
		"minutes out of range": {
			line:    "2275.0000,N,11354.0000,E,010124,235959.0",
			errWant: ErrMalformedField,
		},
		"short longitude": {
			line:    "2234.0000,N,113,E,010124,235959.0",
			errWant: ErrMalformedField,
		},
		"bad month": {
			line:    "2234.0000,N,11354.0000,E,011324,235959.0",
			errWant: ErrMalformedField,
		},
		"day past end of month": {
			line:    "2234.0000,N,11354.0000,E,310224,235959.0",
			errWant: ErrMalformedField,
		},
		"day zero": {
			line:    "2234.0000,N,11354.0000,E,000124,235959.0",
			errWant: ErrMalformedField,
		},
		"leap day": {
			line:      "2234.0000,N,11354.0000,E,290224,120000.0",
			lat:       22.5667,
			lon:       113.9,
			timestamp: "2024-02-29T12:00:00",
		},
		"short date": {
			line:    "2234.0000,N,11354.0000,E,0101,235959.0",
			errWant: ErrMalformedField,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			f, err := Parse(test.line)
			if test.errWant != nil {
				assert.ErrorIs(t, err, test.errWant)
				assert.Equal(t, GeoFix{}, f, "no partial fix on error")
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, test.lat, f.Latitude, 1e-4)
			assert.InDelta(t, test.lon, f.Longitude, 1e-4)
			assert.Equal(t, test.timestamp, f.Timestamp)
		})
	}
}

func TestParseHemisphere(t *testing.T) {
	for _, ns := range []string{"N", "S"} {
		for _, ew := range []string{"E", "W"} {
			f, err := Parse("2234.0000," + ns + ",11354.0000," + ew + ",010124,235959.0")
			require.NoError(t, err)
			assert.Equal(t, ns == "S", f.Latitude < 0, "latitude sign for %s", ns)
			assert.Equal(t, ew == "W", f.Longitude < 0, "longitude sign for %s", ew)
		}
	}
}

func TestGeoFixTime(t *testing.T) {
	f, err := Parse("2234.0000,N,11354.0000,E,010124,235959.0")
	require.NoError(t, err)

	ts, err := f.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 23, 59, 59, 0, time.UTC), ts)
	assert.Contains(t, f.String(), "2024-01-01T23:59:59")
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "Delivered", Delivered.String())
	assert.Equal(t, "NoFix", NoFix.String())
	assert.Equal(t, "ModemUnresponsive", ModemUnresponsive.String())
	assert.Equal(t, "DeliveryFailed", DeliveryFailed.String())
	assert.Equal(t, "TransportFault", TransportFault.String())
	assert.Equal(t, "Outcome(42)", Outcome(42).String())
}
