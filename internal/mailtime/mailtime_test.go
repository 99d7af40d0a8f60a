package mailtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sat, 8 May 2021 10:23:44 +0800", "2021-05-08 10:23:44"},
		{"8 May 2021 10:23:44 +0800", "2021-05-08 10:23:44"},
		{"Mon, 25 Dec 2023 00:00:01", "2023-12-25 00:00:01"},
		{"Tue,  1 Jan 2022  09:05:00  -0500", "2022-01-01 09:05:00"},
		{"31 jan 2021 23:59:59", "2021-01-31 23:59:59"},
	}
	for _, tt := range tests {
		got, err := Convert(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestConvertMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"Sat, 8 May 2021",              // missing time
		"Sat, 8 Mai 2021 10:23:44",     // unknown month
		"Sat, xx May 2021 10:23:44",    // non-numeric day
		"Sat, 8 May year 10:23:44",     // non-numeric year
		"Sat, 8 May 2021 10-23-44",     // bad clock
		"not a date at all",
	} {
		_, err := Convert(in)
		assert.ErrorIs(t, err, ErrMalformedTimestamp, in)
	}
}

func TestParseRoundTrip(t *testing.T) {
	got, err := Parse("2021-05-08 10:23:44")
	require.NoError(t, err)
	want := time.Date(2021, 5, 8, 10, 23, 44, 0, time.Local)
	assert.True(t, got.Equal(want))

	_, err = Parse("garbage")
	assert.ErrorIs(t, err, ErrMalformedTimestamp)
}
