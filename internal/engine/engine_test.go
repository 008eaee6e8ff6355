package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-uster-waste/internal/config"
	"github.com/tartampluch/go-uster-waste/internal/engine"
)

// -----------------------------------------------------------------------------
// Mocks & Fixtures
// -----------------------------------------------------------------------------

// MockFetcher simulates the network layer for unit tests using `testify/mock`.
type MockFetcher struct {
	mock.Mock
}

// Fetch implements the engine.ScheduleFetcher interface.
func (m *MockFetcher) Fetch(ctx context.Context, cfg engine.FetchConfig) ([]byte, error) {
	args := m.Called(ctx, cfg)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockClock controls time for deterministic testing.
type MockClock struct {
	CurrentTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.CurrentTime
}

var testCfg = engine.FetchConfig{Token: "tok-123", LocationID: "42", DisplayName: "Home"}

// schedulePage renders a page with the styled schedule table.
// Each row is {type, date}.
func schedulePage(rows ...[2]string) []byte {
	var b strings.Builder
	b.WriteString(`<html><body><h1>Abfuhrdaten</h1><table class="table table-striped">`)
	b.WriteString(`<tr><th>Abfallart</th><th>Datum</th></tr>`)
	for _, r := range rows {
		fmt.Fprintf(&b, `<tr><td> %s </td><td>%s</td></tr>`, r[0], r[1])
	}
	b.WriteString(`</table></body></html>`)
	return []byte(b.String())
}

// -----------------------------------------------------------------------------
// Test Cases
// -----------------------------------------------------------------------------

func TestPipelineRun_ThreeUpcomingRows(t *testing.T) {
	// Scenario: three valid rows on consecutive future days, listed out of order.
	now := time.Date(2025, 10, 20, 18, 30, 0, 0, time.UTC)
	page := schedulePage(
		[2]string{"PET", "22.10.2025"},
		[2]string{"Karton", "21. Okt. 2025"},
		[2]string{"Grüngut", "23.10.25"},
	)

	mockFetcher := new(MockFetcher)
	mockFetcher.On("Fetch", mock.Anything, testCfg).Return(page, nil)

	p := &engine.Pipeline{Clock: MockClock{CurrentTime: now}, Fetcher: mockFetcher}
	summary, err := p.Run(context.Background(), testCfg)

	require.NoError(t, err)
	require.Len(t, summary.Entries, 3)
	require.NotNil(t, summary.NextType)
	assert.Equal(t, "Karton", *summary.NextType, "Earliest date should be next")
	assert.Equal(t, "21. Okt. 2025", *summary.NextDate, "Date text must stay untouched")
	assert.Equal(t, 1, *summary.NextDaysUntil)

	for i, e := range summary.Entries {
		assert.GreaterOrEqual(t, e.DaysUntil, 0)
		if i > 0 {
			assert.False(t, e.Date.Before(summary.Entries[i-1].Date), "Entries must be ascending")
		}
	}
	assert.Equal(t, now, summary.GeneratedAt)
	mockFetcher.AssertExpectations(t)
}

func TestPipelineRun_PartialSuccess(t *testing.T) {
	// Scenario: one valid row and two rows with broken dates.
	page := schedulePage(
		[2]string{"Papier", "bald"},
		[2]string{"Karton", "05.11.2025"},
		[2]string{"PET", "32.13.2025"},
	)

	mockFetcher := new(MockFetcher)
	mockFetcher.On("Fetch", mock.Anything, testCfg).Return(page, nil)

	p := &engine.Pipeline{
		Clock:   MockClock{CurrentTime: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)},
		Fetcher: mockFetcher,
	}
	summary, err := p.Run(context.Background(), testCfg)

	require.NoError(t, err)
	require.Len(t, summary.Entries, 1)
	assert.Equal(t, "Karton", summary.Entries[0].Type)
	assert.Equal(t, 4, summary.Entries[0].DaysUntil)
	assert.Empty(t, summary.Error)
}

func TestPipelineRun_NoTable(t *testing.T) {
	mockFetcher := new(MockFetcher)
	mockFetcher.On("Fetch", mock.Anything, testCfg).
		Return([]byte("<html><body><p>Wartungsarbeiten</p></body></html>"), nil)

	p := &engine.Pipeline{Clock: MockClock{CurrentTime: time.Now()}, Fetcher: mockFetcher}
	_, err := p.Run(context.Background(), testCfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrNoTable)
	assert.ErrorIs(t, err, engine.ErrParse)
	assert.Contains(t, err.Error(), config.ErrNoTable)
}

func TestPipelineRun_FetchErrorPropagates(t *testing.T) {
	// Scenario: the fetcher reports an expired token.
	mockFetcher := new(MockFetcher)
	mockFetcher.On("Fetch", mock.Anything, testCfg).
		Return(nil, &engine.StatusError{Code: 403, Status: "Forbidden"})

	p := &engine.Pipeline{Clock: MockClock{CurrentTime: time.Now()}, Fetcher: mockFetcher}
	summary, err := p.Run(context.Background(), testCfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrAuthExpired)
	assert.Contains(t, err.Error(), config.TokenRefreshURL)
	assert.Empty(t, summary.Entries)
}

func TestPipelineRun_LimitCapsEntries(t *testing.T) {
	page := schedulePage(
		[2]string{"A", "04.01.2026"},
		[2]string{"B", "03.01.2026"},
		[2]string{"C", "02.01.2026"},
		[2]string{"D", "01.01.2026"},
	)

	mockFetcher := new(MockFetcher)
	mockFetcher.On("Fetch", mock.Anything, testCfg).Return(page, nil)

	p := &engine.Pipeline{
		Clock:   MockClock{CurrentTime: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)},
		Fetcher: mockFetcher,
		MaxRows: 4,
		Limit:   2,
	}
	summary, err := p.Run(context.Background(), testCfg)

	require.NoError(t, err)
	require.Len(t, summary.Entries, 2)
	assert.Equal(t, "D", summary.Entries[0].Type)
	assert.Equal(t, "C", summary.Entries[1].Type)
}

func TestPipelineRun_InvalidConfig(t *testing.T) {
	mockFetcher := new(MockFetcher)
	p := &engine.Pipeline{Clock: MockClock{CurrentTime: time.Now()}, Fetcher: mockFetcher}

	_, err := p.Run(context.Background(), engine.FetchConfig{LocationID: "42"})

	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInvalidConfig)
	mockFetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestPipelineRun_MissingFetcher(t *testing.T) {
	p := &engine.Pipeline{Clock: MockClock{CurrentTime: time.Now()}}

	_, err := p.Run(context.Background(), testCfg)

	require.Error(t, err)
	assert.Equal(t, config.ErrFetcherMissing, err.Error())
}

func TestPipelineRun_CancelledAfterFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	mockFetcher := new(MockFetcher)
	mockFetcher.On("Fetch", mock.Anything, testCfg).
		Run(func(mock.Arguments) { cancel() }).
		Return(schedulePage([2]string{"PET", "01.01.2026"}), nil)

	p := &engine.Pipeline{Clock: MockClock{CurrentTime: time.Now()}, Fetcher: mockFetcher}
	_, err := p.Run(ctx, testCfg)

	assert.True(t, errors.Is(err, context.Canceled))
}
