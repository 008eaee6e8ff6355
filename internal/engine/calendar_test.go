package engine_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-uster-waste/internal/config"
	"github.com/tartampluch/go-uster-waste/internal/engine"
)

func TestBuildCalendar_Events(t *testing.T) {
	stamp := time.Date(2025, 10, 20, 8, 0, 0, 0, time.UTC)
	s := engine.Summarize([]engine.Entry{
		entry("Karton", date(2025, 10, 21)),
		entry("PET", date(2025, 10, 22)),
	}, stamp, 3)

	data, err := engine.BuildCalendar("Home", "42", s, stamp)
	require.NoError(t, err)

	ics := string(data)
	assert.Contains(t, ics, "BEGIN:VCALENDAR")
	assert.Contains(t, ics, "X-WR-CALNAME:Uster Waste (Home)")
	assert.Contains(t, ics, "SUMMARY:Karton")
	assert.Contains(t, ics, "DTSTART;VALUE=DATE:20251021")
	assert.Contains(t, ics, "DTSTART;VALUE=DATE:20251022")
	assert.Contains(t, ics, "LOCATION:Home")

	// Decode to make sure the output is valid iCalendar.
	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	require.NoError(t, err)
	assert.Len(t, cal.Events(), 2)
}

func TestBuildCalendar_StableUIDs(t *testing.T) {
	s := engine.Summarize([]engine.Entry{entry("Karton", date(2025, 10, 21))}, date(2025, 10, 20), 3)

	first, err := engine.BuildCalendar("Home", "42", s, date(2025, 10, 20))
	require.NoError(t, err)
	second, err := engine.BuildCalendar("Home", "42", s.Rebase(date(2025, 10, 21)), date(2025, 10, 21))
	require.NoError(t, err)

	assert.Equal(t, uidLines(string(first)), uidLines(string(second)))
	assert.Contains(t, string(first), "-2025-10-21-")
	assert.Contains(t, string(first), "@"+config.ICalDomain)
}

func TestBuildCalendar_Empty(t *testing.T) {
	data, err := engine.BuildCalendar("Home", "42", engine.ErrorSummary("boom", time.Now()), time.Now())

	require.NoError(t, err)
	assert.Equal(t, config.StubVCalendar, string(data))
}

func uidLines(ics string) []string {
	var uids []string
	for _, line := range strings.Split(ics, "\r\n") {
		if strings.HasPrefix(line, "UID:") {
			uids = append(uids, line)
		}
	}
	return uids
}
