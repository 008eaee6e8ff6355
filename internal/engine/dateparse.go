package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/tartampluch/go-uster-waste/internal/config"
	"golang.org/x/text/unicode/norm"
)

const isoLayout = config.DateLayoutISO

// germanMonths maps lower-case German month names and abbreviations to their
// two-digit month number.
var germanMonths = map[string]string{
	"januar": "01", "jan": "01",
	"februar": "02", "feb": "02",
	"märz": "03", "mär": "03", "mrz": "03",
	"april": "04", "apr": "04",
	"mai": "05",
	"juni": "06", "jun": "06",
	"juli": "07", "jul": "07",
	"august": "08", "aug": "08",
	"september": "09", "sept": "09", "sep": "09",
	"oktober": "10", "okt": "10",
	"november": "11", "nov": "11",
	"dezember": "12", "dez": "12",
}

// monthNames holds the keys of germanMonths, longest first, so that "juni"
// is replaced before "jun" can leave a stray "i" behind.
var monthNames = func() []string {
	names := make([]string, 0, len(germanMonths))
	for name := range germanMonths {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}()

// swissLayouts are tried in order: four-digit year first.
var swissLayouts = []string{
	config.DateLayoutLongYear,
	config.DateLayoutShortYear,
}

// ParseSwissDate converts a Swiss date ("24.10.2023", "24.10.23",
// "24. Okt. 2023", "Di, 24. Oktober 2023") into a civil date at midnight UTC.
//
// Two-digit years use Go's pivot: 69-99 become 1969-1999, 00-68 become
// 2000-2068. Out-of-range days and months are rejected.
func ParseSwissDate(text string) (time.Time, error) {
	normalized := normalizeDateText(text)
	if normalized == "" {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateParse, text)
	}

	for _, layout := range swissLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrDateParse, text)
}

// monthMarker brackets a substituted month number so it counts as a
// delimiter on its own.
const monthMarker = "\x00"

// normalizeDateText rewrites month names to numbers and reduces every
// delimiter to a single period. A delimiter needs one period or a month name;
// bare whitespace ("24 10 2023") and repeated periods ("24..10.2023") are
// rejected with an empty result.
func normalizeDateText(text string) string {
	s := norm.NFC.String(text)
	s = strings.ReplaceAll(s, config.NoBreakSpace, " ")
	s = strings.ToLower(strings.TrimSpace(s))
	s = stripWeekday(s)

	for _, name := range monthNames {
		if strings.Contains(s, name) {
			s = strings.ReplaceAll(s, name, monthMarker+germanMonths[name]+monthMarker)
		}
	}

	var b strings.Builder
	periods, months, inSep := 0, 0, false
	for _, r := range s {
		switch {
		case r == '.':
			periods++
			inSep = true
		case string(r) == monthMarker:
			months++
			inSep = true
		case unicode.IsSpace(r):
			inSep = true
		default:
			// Leading and trailing delimiters are dropped.
			if inSep && b.Len() > 0 {
				if periods > 1 || periods+months == 0 {
					return ""
				}
				b.WriteString(config.DateSeparator)
			}
			periods, months, inSep = 0, 0, false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripWeekday removes a leading "Di," or "Dienstag," token.
func stripWeekday(s string) string {
	idx := strings.IndexByte(s, ',')
	if idx <= 0 {
		return s
	}
	for _, r := range s[:idx] {
		if !unicode.IsLetter(r) {
			return s
		}
	}
	return strings.TrimSpace(s[idx+1:])
}
