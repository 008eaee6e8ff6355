package locale_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-uster-waste/internal/config"
	"github.com/tartampluch/go-uster-waste/internal/engine"
	"github.com/tartampluch/go-uster-waste/internal/locale"
)

// TestI18nIntegrity ensures that every translation key defined in config.go
// exists in every locale JSON file.
func TestI18nIntegrity(t *testing.T) {
	keysToCheck := []string{
		config.TKeyErrAuthExpired,
		config.TKeyErrHTTPStatus,
		config.TKeyErrNetwork,
		config.TKeyErrNoTable,
		config.TKeyErrNoDataRows,
		config.TKeyErrNoValidEntry,
		config.TKeyErrParse,
		config.TKeyErrDateParse,
		config.TKeyErrInvalidConfig,
		config.TKeyErrUnexpected,
	}

	files, err := filepath.Glob(filepath.Join("locales", "active.*.json"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			content, err := os.ReadFile(file)
			require.NoError(t, err)

			var messages map[string]string
			require.NoError(t, json.Unmarshal(content, &messages))

			for _, k := range keysToCheck {
				assert.NotEmpty(t, messages[k], "Missing translation key %q", k)
			}
		})
	}
}

func TestNew_DetectsLanguages(t *testing.T) {
	l := locale.New("en")

	assert.ElementsMatch(t, []string{"de", "en"}, l.Languages())
}

func TestErrorMessage_AuthExpired(t *testing.T) {
	err := fmt.Errorf("refresh: %w", &engine.StatusError{Code: 403, Status: "Forbidden"})

	en := locale.New("en").ErrorMessage(err)
	assert.Contains(t, en, "Token expired or invalid")
	assert.Contains(t, en, "403")
	assert.Contains(t, en, config.TokenRefreshURL)

	de := locale.New("de").ErrorMessage(err)
	assert.Contains(t, de, "Token abgelaufen")
	assert.Contains(t, de, config.TokenRefreshURL)
}

func TestErrorMessage_Kinds(t *testing.T) {
	l := locale.New("en")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"No table", engine.ErrNoTable, "No schedule table"},
		{"No data rows", engine.ErrNoDataRows, "no data rows"},
		{"No valid entries", engine.ErrNoValidEntries, "valid date"},
		{"Server error", &engine.StatusError{Code: 502}, "HTTP 502"},
		{"Timeout", fmt.Errorf("%w: %w", engine.ErrNetwork, context.DeadlineExceeded), "deadline exceeded"},
		{"Invalid config", fmt.Errorf("%w: token is empty", engine.ErrInvalidConfig), "token is empty"},
		{"Unexpected", errors.New("boom"), "Unexpected error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, l.ErrorMessage(tt.err), tt.want)
		})
	}
}

func TestErrorMessage_Nil(t *testing.T) {
	assert.Empty(t, locale.New("en").ErrorMessage(nil))
}

func TestSetLanguage_UnknownFallsBackToEnglish(t *testing.T) {
	l := locale.New("fr")

	assert.Contains(t, l.ErrorMessage(engine.ErrNoTable), "No schedule table")
}

func TestMsg_MissingKeyReturnsKey(t *testing.T) {
	l := locale.New("en")

	assert.Equal(t, "DoesNotExist", l.Msg("DoesNotExist", nil))
}
