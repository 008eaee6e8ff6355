package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tartampluch/go-uster-waste/internal/config"
)

// FetchConfig identifies one collection zone on the upstream site.
type FetchConfig struct {
	Token       string // Opaque token issued by the site; expires periodically.
	LocationID  string // Street section identifier.
	DisplayName string // Human label, not sent upstream.
}

// Validate reports ErrInvalidConfig when the token or location id is blank.
func (c FetchConfig) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, config.ErrTokenEmpty)
	}
	if strings.TrimSpace(c.LocationID) == "" {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, config.ErrLocationEmpty)
	}
	return nil
}

// ScheduleFetcher defines the contract for retrieving the raw schedule page.
// This interface allows for mocking in tests and decoupling from the network layer.
type ScheduleFetcher interface {
	Fetch(ctx context.Context, cfg FetchConfig) ([]byte, error)
}

// HTTPFetcher implements ScheduleFetcher using the standard net/http library.
type HTTPFetcher struct {
	Client  *http.Client
	BaseURL string
}

// NewHTTPFetcher creates a new instance of HTTPFetcher with the fixed request timeout.
// An empty baseURL selects config.DefaultBaseURL.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	return &HTTPFetcher{
		Client: &http.Client{
			Timeout: config.HTTPTimeout,
		},
		BaseURL: baseURL,
	}
}

// BuildURL constructs the request URL for cfg. Query parameters are encoded
// in a deterministic order.
func BuildURL(baseURL string, cfg FetchConfig) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrInvalidURL, err)
	}
	if u.Scheme != config.SchemeHTTP && u.Scheme != config.SchemeHTTPS {
		return "", fmt.Errorf("%w: %s: %q", ErrInvalidConfig, config.ErrProtocol, u.Scheme)
	}

	q := u.Query()
	q.Set(config.QueryParamToken, cfg.Token)
	q.Set(config.QueryParamLocationID, cfg.LocationID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch downloads the schedule page for cfg.
//
// 403 and 404 are reported as ErrAuthExpired, any other non-2xx status as
// ErrHTTPStatus (both through *StatusError), and transport failures or
// timeouts as ErrNetwork. No retry happens here.
func (f *HTTPFetcher) Fetch(ctx context.Context, cfg FetchConfig) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	target, err := BuildURL(f.BaseURL, cfg)
	if err != nil {
		return nil, err
	}

	// The token lives in the query string; keep it out of the logs.
	log := slog.With(
		slog.String(config.LogKeyComponent, config.CompFetcher),
		slog.String(config.LogKeyURL, safeURL(target)),
		slog.String(config.LogKeyLocation, cfg.LocationID),
	)
	log.Debug(config.MsgFetchStarted)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", redactURL(err, target))
	}
	req.Header.Set(config.HeaderUserAgent, config.UserAgent)
	req.Header.Set(config.HeaderAccept, config.MimeHTML)
	req.Header.Set(config.HeaderAcceptLanguage, config.AcceptLanguageDE)

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, redactURL(err, target))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Warn(config.MsgFetchStatus, slog.Int(config.LogKeyStatus, resp.StatusCode))
		return nil, &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, config.MaxHTTPResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNetwork, config.ErrReadBody, err)
	}

	log.Info(config.MsgFetchDone, slog.Int(config.LogKeySizeBytes, len(body)))
	return body, nil
}

// redactURL replaces the request URL carried by a *url.Error so the token
// never reaches error messages. The wrapped cause is kept.
func redactURL(err error, target string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = safeURL(target)
	}
	return err
}

// safeURL strips the query string, which carries the token.
func safeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host + u.Path
}
