package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Entry is one row of the collection schedule.
type Entry struct {
	// Type is the collection label as shown on the page (e.g. "Karton").
	Type string

	// DateText is the original locale text of the date, never reformatted.
	DateText string

	// Date is the parsed civil date at midnight UTC.
	Date time.Time

	// DaysUntil is Date minus the civil date of the summarization instant.
	// It is negative when the page still lists a past collection.
	DaysUntil int
}

// ISODate returns the civil date as YYYY-MM-DD.
func (e Entry) ISODate() string {
	return e.Date.Format(isoLayout)
}

// entryJSON is the wire form of Entry. The civil date travels as iso_date so
// cached summaries can be restored with their absolute dates.
type entryJSON struct {
	Type      string `json:"type"`
	DateText  string `json:"date"`
	ISODate   string `json:"iso_date"`
	DaysUntil int    `json:"days_until"`
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Type:      e.Type,
		DateText:  e.DateText,
		ISODate:   e.ISODate(),
		DaysUntil: e.DaysUntil,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	date, err := time.Parse(isoLayout, raw.ISODate)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrDateParse, raw.ISODate)
	}
	*e = Entry{
		Type:      raw.Type,
		DateText:  raw.DateText,
		Date:      date,
		DaysUntil: raw.DaysUntil,
	}
	return nil
}

// Summary is the result of one fetch cycle.
// Next* fields mirror the first element of Entries when present.
type Summary struct {
	NextType      *string   `json:"next_collection"`
	NextDate      *string   `json:"date"`
	NextDaysUntil *int      `json:"days_until"`
	Entries       []Entry   `json:"entries"`
	Error         string    `json:"error,omitempty"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Next returns the soonest entry, if any.
func (s Summary) Next() (Entry, bool) {
	if len(s.Entries) == 0 {
		return Entry{}, false
	}
	return s.Entries[0], true
}

// HasData reports whether the summary holds at least one entry.
func (s Summary) HasData() bool {
	return len(s.Entries) > 0
}

// ErrorSummary builds the summary installed when no successful fetch ever happened.
func ErrorSummary(message string, now time.Time) Summary {
	return Summary{
		Entries:     []Entry{},
		Error:       message,
		GeneratedAt: now,
	}
}

// Summarize sorts entries chronologically, recomputes DaysUntil against now
// and caps the list to limit entries (limit <= 0 means no cap).
// The input slice is not modified.
func Summarize(entries []Entry, now time.Time, limit int) Summary {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)

	// Stable so that rows sharing a date keep the page order.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	for i := range sorted {
		sorted[i].DaysUntil = DaysBetween(now, sorted[i].Date)
	}

	return newSummary(sorted, now)
}

// Rebase returns a copy of the summary with DaysUntil recomputed against now.
// Order and membership are unchanged; the receiver is not mutated.
func (s Summary) Rebase(now time.Time) Summary {
	entries := make([]Entry, len(s.Entries))
	copy(entries, s.Entries)
	for i := range entries {
		entries[i].DaysUntil = DaysBetween(now, entries[i].Date)
	}

	out := newSummary(entries, s.GeneratedAt)
	out.Error = s.Error
	return out
}

// DaysBetween returns the signed number of calendar days from the civil date
// of now to the civil date of target. Both are compared by their own
// year/month/day so daylight saving shifts do not skew the count.
func DaysBetween(now, target time.Time) int {
	y1, m1, d1 := now.Date()
	y2, m2, d2 := target.Date()
	from := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	to := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	// Day numbers instead of Sub: a Duration saturates past about 292 years.
	return int(to.Unix()/secondsPerDay - from.Unix()/secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

func newSummary(entries []Entry, generatedAt time.Time) Summary {
	s := Summary{
		Entries:     entries,
		GeneratedAt: generatedAt,
	}
	if first, ok := s.Next(); ok {
		nextType := first.Type
		nextDate := first.DateText
		days := first.DaysUntil
		s.NextType = &nextType
		s.NextDate = &nextDate
		s.NextDaysUntil = &days
	}
	return s
}
