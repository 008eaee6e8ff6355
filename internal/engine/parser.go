package engine

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tartampluch/go-uster-waste/internal/config"
)

// ParseSchedule extracts collection entries from the schedule page.
//
// The first table carrying the "table table-striped" classes is used, or the
// first table of the document when none does. The header row is skipped and
// at most maxRows data rows are read (maxRows <= 0 selects
// config.DefaultMaxRows). Rows with fewer than two cells or an unparseable
// date are skipped and logged.
//
// Entries are returned in page order; sorting happens in Summarize.
func ParseSchedule(r io.Reader, maxRows int) ([]Entry, error) {
	if maxRows <= 0 {
		maxRows = config.DefaultMaxRows
	}

	log := slog.With(slog.String(config.LogKeyComponent, config.CompParser))

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}

	table := doc.Find(config.SelectorPreferredTable).First()
	if table.Length() == 0 {
		table = doc.Find(config.SelectorAnyTable).First()
		if table.Length() == 0 {
			return nil, ErrNoTable
		}
		log.Debug(config.MsgTableFallback)
	}

	rows := table.Find(config.SelectorRow)
	if rows.Length() < 2 {
		return nil, ErrNoDataRows
	}

	end := 1 + maxRows
	if end > rows.Length() {
		end = rows.Length()
	}

	var entries []Entry
	rows.Slice(1, end).Each(func(i int, row *goquery.Selection) {
		cells := row.Find(config.SelectorCell)
		if cells.Length() < config.MinCells {
			log.Debug(config.MsgSkippedRow,
				slog.Int(config.LogKeyRow, i+1),
				slog.Int(config.LogKeyCount, cells.Length()))
			return
		}

		kind := cellText(cells.Eq(config.ColumnType))
		dateText := cellText(cells.Eq(config.ColumnDate))

		date, err := ParseSwissDate(dateText)
		if err != nil {
			log.Warn(config.MsgSkippedDate,
				slog.Int(config.LogKeyRow, i+1),
				slog.String(config.LogKeyValue, dateText))
			return
		}

		entries = append(entries, Entry{
			Type:     kind,
			DateText: dateText,
			Date:     date,
		})
	})

	if len(entries) == 0 {
		return nil, ErrNoValidEntries
	}

	log.Debug(config.MsgParseSuccess,
		slog.Int(config.LogKeyRows, end-1),
		slog.Int(config.LogKeyCount, len(entries)))
	return entries, nil
}

// ParseScheduleBytes is a convenience wrapper around ParseSchedule.
func ParseScheduleBytes(page []byte, maxRows int) ([]Entry, error) {
	return ParseSchedule(bytes.NewReader(page), maxRows)
}

// cellText returns the visible text of a cell with non-breaking spaces
// turned into plain spaces and the result trimmed.
func cellText(cell *goquery.Selection) string {
	text := strings.ReplaceAll(cell.Text(), config.NoBreakSpace, " ")
	return strings.TrimSpace(text)
}
