package engine_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-uster-waste/internal/engine"
)

func entry(kind string, d time.Time) engine.Entry {
	return engine.Entry{Type: kind, DateText: d.Format("02.01.2006"), Date: d}
}

func TestSummarize_SortsAndCaps(t *testing.T) {
	now := time.Date(2025, 10, 20, 23, 59, 0, 0, time.UTC)
	in := []engine.Entry{
		entry("PET", date(2025, 10, 23)),
		entry("Karton", date(2025, 10, 21)),
		entry("Altmetall", date(2025, 11, 2)),
		entry("Grüngut", date(2025, 10, 22)),
	}
	original := append([]engine.Entry(nil), in...)

	s := engine.Summarize(in, now, 3)

	require.Len(t, s.Entries, 3)
	assert.Equal(t, []string{"Karton", "Grüngut", "PET"},
		[]string{s.Entries[0].Type, s.Entries[1].Type, s.Entries[2].Type})
	assert.Equal(t, []int{1, 2, 3},
		[]int{s.Entries[0].DaysUntil, s.Entries[1].DaysUntil, s.Entries[2].DaysUntil})
	assert.Equal(t, original, in, "Input slice must not be modified")

	require.NotNil(t, s.NextType)
	assert.Equal(t, s.Entries[0].Type, *s.NextType)
	assert.Equal(t, s.Entries[0].DateText, *s.NextDate)
	assert.Equal(t, s.Entries[0].DaysUntil, *s.NextDaysUntil)
}

func TestSummarize_OrderIndependent(t *testing.T) {
	now := date(2025, 1, 1)
	a := entry("A", date(2025, 1, 3))
	b := entry("B", date(2025, 1, 2))
	c := entry("C", date(2025, 1, 5))

	perms := [][]engine.Entry{
		{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}

	want := engine.Summarize(perms[0], now, 3)
	for _, p := range perms[1:] {
		assert.Equal(t, want, engine.Summarize(p, now, 3))
	}
}

func TestSummarize_StableForEqualDates(t *testing.T) {
	d := date(2025, 3, 1)
	s := engine.Summarize([]engine.Entry{entry("Papier", d), entry("Karton", d)}, date(2025, 2, 1), 3)

	require.Len(t, s.Entries, 2)
	assert.Equal(t, "Papier", s.Entries[0].Type)
	assert.Equal(t, "Karton", s.Entries[1].Type)
}

func TestSummarize_PastEntriesKept(t *testing.T) {
	s := engine.Summarize([]engine.Entry{entry("PET", date(2025, 5, 1))}, date(2025, 5, 3), 3)

	require.Len(t, s.Entries, 1)
	assert.Equal(t, -2, s.Entries[0].DaysUntil)
}

func TestSummarize_Empty(t *testing.T) {
	s := engine.Summarize(nil, time.Now(), 3)

	assert.False(t, s.HasData())
	assert.Nil(t, s.NextType)
	assert.Nil(t, s.NextDate)
	assert.Nil(t, s.NextDaysUntil)
}

func TestSummary_Rebase(t *testing.T) {
	generated := date(2025, 10, 20)
	s := engine.Summarize([]engine.Entry{
		entry("Karton", date(2025, 10, 21)),
		entry("PET", date(2025, 10, 25)),
	}, generated, 3)

	later := s.Rebase(date(2025, 10, 23))

	assert.Equal(t, -2, later.Entries[0].DaysUntil)
	assert.Equal(t, 2, later.Entries[1].DaysUntil)
	assert.Equal(t, -2, *later.NextDaysUntil)
	assert.Equal(t, generated, later.GeneratedAt)

	// The original is untouched.
	assert.Equal(t, 1, s.Entries[0].DaysUntil)
	assert.Equal(t, 1, *s.NextDaysUntil)
}

func TestSummary_RebaseKeepsError(t *testing.T) {
	s := engine.ErrorSummary("token expired", date(2025, 1, 1))

	r := s.Rebase(date(2025, 2, 1))

	assert.Equal(t, "token expired", r.Error)
	assert.NotNil(t, r.Entries)
	assert.Empty(t, r.Entries)
}

func TestSummary_JSONRoundTrip(t *testing.T) {
	s := engine.Summarize([]engine.Entry{
		{Type: "Karton", DateText: "21. Okt. 2025", Date: date(2025, 10, 21)},
		entry("PET", date(2025, 10, 22)),
	}, date(2025, 10, 20), 3)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "Karton", raw["next_collection"])
	assert.Equal(t, "21. Okt. 2025", raw["date"])
	assert.EqualValues(t, 1, raw["days_until"])
	first := raw["entries"].([]any)[0].(map[string]any)
	assert.Equal(t, "2025-10-21", first["iso_date"])

	var back engine.Summary
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s.Entries, back.Entries)
	assert.Equal(t, *s.NextType, *back.NextType)
	assert.True(t, s.GeneratedAt.Equal(back.GeneratedAt))
}

func TestEntry_UnmarshalInvalidDate(t *testing.T) {
	var e engine.Entry
	err := json.Unmarshal([]byte(`{"type":"PET","date":"x","iso_date":"not-a-date","days_until":0}`), &e)

	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrDateParse)
}

func TestDaysBetween(t *testing.T) {
	cet := time.FixedZone("CET", 3600)

	tests := []struct {
		name   string
		now    time.Time
		target time.Time
		want   int
	}{
		{"Same day", date(2025, 1, 1), date(2025, 1, 1), 0},
		{"Late evening", time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC), date(2025, 1, 2), 1},
		{"Past", date(2025, 1, 10), date(2025, 1, 1), -9},
		{"Year boundary", date(2025, 12, 31), date(2026, 1, 1), 1},
		{"Leap day", date(2024, 2, 28), date(2024, 3, 1), 2},
		{"Non-UTC clock", time.Date(2025, 3, 29, 0, 30, 0, 0, cet), date(2025, 3, 31), 2},
		{"Year one", date(2025, 1, 1), date(1, 1, 1), -739251},
		{"Far future", date(2025, 1, 1), date(9999, 12, 31), 2912807},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.DaysBetween(tt.now, tt.target))
		})
	}
}
