package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tartampluch/go-uster-waste/internal/config"
)

// TestConstants_Integrity ensures critical constants are not empty or malformed.
func TestConstants_Integrity(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"AppName", config.AppName},
		{"AppID", config.AppID},
		{"Version", config.Version},
		{"UserAgent", config.UserAgent},
		{"ICalVersion", config.ICalVersion},
		{"ICalProdid", config.ICalProdid},
		{"DefaultBaseURL", config.DefaultBaseURL},
		{"QueryParamToken", config.QueryParamToken},
		{"QueryParamLocationID", config.QueryParamLocationID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEmpty(t, tt.value, "Critical constant %s should not be empty", tt.name)
		})
	}
}

// TestDefaults_Sanity checks that default values make sense logically.
func TestDefaults_Sanity(t *testing.T) {
	assert.Equal(t, 24*time.Hour, config.DefaultRefreshInterval, "The page changes at most daily")
	assert.Equal(t, 3, config.DefaultMaxRows)
	assert.Equal(t, 3, config.SummaryLimit)
	assert.Equal(t, 10*time.Second, config.HTTPTimeout)
	assert.NoError(t, config.ValidatePort(config.DefaultPort))
}

// TestUserAgent_Format ensures the UA string follows the standard format.
func TestUserAgent_Format(t *testing.T) {
	assert.True(t, strings.HasPrefix(config.UserAgent, "Uster-Waste/"), "UserAgent must start with AppName/")
}

// TestTimeoutsAndLimits ensures that operational constraints are reasonable.
func TestTimeoutsAndLimits(t *testing.T) {
	t.Parallel()

	assert.Greater(t, config.HTTPTimeout, 0*time.Second, "HTTPTimeout must be positive")
	assert.Greater(t, config.ShutdownTimeout, 0*time.Second, "ShutdownTimeout must be positive")
	assert.Greater(t, config.ServerWriteTimeout, config.ServerReadTimeout)

	assert.Greater(t, config.MaxHTTPResponseSize, 0, "MaxHTTPResponseSize must be positive")
	assert.LessOrEqual(t, config.MaxHTTPResponseSize, 50*1024*1024, "A schedule page is small")
}

// TestTokenRefreshURL ensures users are sent to the page issuing fresh tokens.
func TestTokenRefreshURL(t *testing.T) {
	assert.True(t, strings.HasPrefix(config.TokenRefreshURL, "https://www.uster.ch/"))
	assert.Contains(t, config.StubVCalendar, config.ICalProdid)
}
