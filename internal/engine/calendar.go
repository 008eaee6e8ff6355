package engine

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tartampluch/go-uster-waste/internal/config"
)

// BuildCalendar renders the summary entries as all-day events.
// UIDs depend on the location, the date and the collection type only, so
// calendar clients update events in place across refreshes.
func BuildCalendar(name, locationID string, s Summary, stamp time.Time) ([]byte, error) {
	if len(s.Entries) == 0 {
		return []byte(config.StubVCalendar), nil
	}

	cal := ical.NewCalendar()

	// Set standard iCalendar headers
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, fmt.Sprintf(config.FormatCalName, config.AppName, name))
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	// RFC 7986
	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(stamp.UTC())

	for _, e := range s.Entries {
		event := ical.NewEvent()
		event.Props.SetText(config.PropUID, eventUID(locationID, e))
		event.Props.SetText(config.PropSummary, e.Type)
		if name != "" {
			event.Props.SetText(config.PropLocation, name)
		}

		dtStartProp := ical.NewProp(config.PropDTStart)
		dtStartProp.SetDate(e.Date)
		event.Props.Set(dtStartProp)
		event.Props.Set(dtStampProp)

		cal.Children = append(cal.Children, event.Component)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}
	return buf.Bytes(), nil
}

func eventUID(locationID string, e Entry) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf(config.FormatHashInput, locationID, e.Type)))
	return fmt.Sprintf(config.FormatUID,
		locationID, e.ISODate(), fmt.Sprintf("%x", hash[:config.UIDHashLength]), config.ICalDomain)
}
