package engine

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tartampluch/go-uster-waste/internal/config"
)

// Error taxonomy of the fetch/parse pipeline. Callers match with errors.Is.
var (
	ErrAuthExpired   = errors.New(config.ErrAuthExpired)
	ErrHTTPStatus    = errors.New(config.ErrHTTPStatus)
	ErrNetwork       = errors.New(config.ErrNetwork)
	ErrParse         = errors.New(config.ErrParse)
	ErrDateParse     = errors.New(config.ErrDateParse)
	ErrInvalidConfig = errors.New(config.ErrInvalidConfig)

	ErrNoTable        = fmt.Errorf("%w: %s", ErrParse, config.ErrNoTable)
	ErrNoDataRows     = fmt.Errorf("%w: %s", ErrParse, config.ErrNoDataRows)
	ErrNoValidEntries = fmt.Errorf("%w: %s", ErrParse, config.ErrNoValidEntries)
)

// StatusError carries the HTTP status of a rejected schedule request.
// It unwraps to ErrAuthExpired for 403/404 and to ErrHTTPStatus otherwise.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	if e.authExpired() {
		return fmt.Sprintf("%s (HTTP %d): please get a fresh URL from %s",
			config.ErrAuthExpired, e.Code, config.TokenRefreshURL)
	}
	return fmt.Sprintf("%s: %d %s", config.ErrHTTPStatus, e.Code, e.Status)
}

func (e *StatusError) Unwrap() error {
	if e.authExpired() {
		return ErrAuthExpired
	}
	return ErrHTTPStatus
}

func (e *StatusError) authExpired() bool {
	return e.Code == http.StatusForbidden || e.Code == http.StatusNotFound
}

// Stable labels returned by ErrorKind.
const (
	KindAuthExpired   = "auth_expired"
	KindHTTPStatus    = "http_status"
	KindNetwork       = "network"
	KindNoTable       = "no_table"
	KindNoDataRows    = "no_data_rows"
	KindNoValidEntry  = "no_valid_entries"
	KindParse         = "parse"
	KindDateParse     = "date_parse"
	KindInvalidConfig = "invalid_config"
	KindUnexpected    = "unexpected"
)

// ErrorKind maps pipeline errors to a stable label used in logs and for
// message lookup by the presentation layer.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrAuthExpired):
		return KindAuthExpired
	case errors.Is(err, ErrHTTPStatus):
		return KindHTTPStatus
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrNoTable):
		return KindNoTable
	case errors.Is(err, ErrNoDataRows):
		return KindNoDataRows
	case errors.Is(err, ErrNoValidEntries):
		return KindNoValidEntry
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrDateParse):
		return KindDateParse
	case errors.Is(err, ErrInvalidConfig):
		return KindInvalidConfig
	}
	return KindUnexpected
}
