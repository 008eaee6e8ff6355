package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tartampluch/go-uster-waste/internal/config"
	"github.com/tartampluch/go-uster-waste/internal/engine"
	"github.com/tartampluch/go-uster-waste/internal/refresh"
)

// cacheItem stores the rendered calendar and its metadata for HTTP caching.
type cacheItem struct {
	data         []byte
	etag         string
	lastModified string // RFC1123 format required by HTTP headers
}

// locationView is the JSON form of one location's sensor state.
type locationView struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	NextType      *string        `json:"next_collection"`
	Type          *string        `json:"type"`
	NextDate      *string        `json:"date"`
	NextDaysUntil *int           `json:"days_until"`
	Entries       []engine.Entry `json:"entries"`
	Error         string         `json:"error,omitempty"`
	LastUpdated   *time.Time     `json:"last_updated"`
	LastAttempt   *time.Time     `json:"last_attempt"`
	LastError     string         `json:"last_error,omitempty"`
	Calendar      string         `json:"calendar"`
}

type healthView struct {
	Status    string   `json:"status"`
	Version   string   `json:"version"`
	Locations int      `json:"locations"`
	Languages []string `json:"languages,omitempty"`
}

// Server exposes the cached schedules over HTTP: one ICS feed per location
// and a small JSON API mirroring the sensor attributes.
type Server struct {
	Addr string

	// Languages lists the translations available to the sensor messages.
	Languages []string

	registry *refresh.Registry
	clock    engine.Clock

	// calendars is filled once by New and only read afterwards; each entry
	// is swapped atomically so GET never contends with a refresh.
	calendars map[string]*atomic.Pointer[cacheItem]
}

// New creates a server for every location of reg. Locations must be
// registered before New is called.
func New(addr string, reg *refresh.Registry, clock engine.Clock) *Server {
	if clock == nil {
		clock = engine.RealClock{}
	}

	s := &Server{
		Addr:      addr,
		registry:  reg,
		clock:     clock,
		calendars: make(map[string]*atomic.Pointer[cacheItem]),
	}

	for _, c := range reg.List() {
		s.calendars[c.LocationID()] = new(atomic.Pointer[cacheItem])
		c.Subscribe(s.render)
		if snap := c.Current(); snap.HasSummary() {
			s.render(snap)
		}
	}
	return s
}

// Handler returns the routing table of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(config.RouteHealth, s.handleHealth)
	mux.HandleFunc(config.RouteLocations, s.handleLocations)
	mux.HandleFunc(config.RouteLocation, s.handleLocation)
	mux.HandleFunc(config.RouteRefresh, s.handleRefresh)
	mux.HandleFunc(config.RouteCalendar, s.handleCalendarRequest)
	return mux
}

// Start initializes the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.Addr == "" {
		return errors.New(config.ErrServerAddr)
	}

	srv := &http.Server{
		Addr:         s.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyAddr, s.Addr,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// Update atomically replaces the calendar served for locationID.
// Unknown locations are ignored.
func (s *Server) Update(locationID string, data []byte) {
	slot, ok := s.calendars[locationID]
	if !ok {
		return
	}

	hash := sha256.Sum256(data)
	etag := fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:]))

	slot.Store(&cacheItem{
		data:         data,
		etag:         etag,
		lastModified: s.clock.Now().UTC().Format(http.TimeFormat),
	})

	slog.Debug(config.MsgCacheUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyLocation, locationID,
		config.LogKeySizeBytes, len(data),
		config.LogKeyETag, etag,
	)
}

// render rebuilds the ICS feed of a location after a refresh cycle.
func (s *Server) render(snap refresh.Snapshot) {
	if !snap.HasSummary() {
		return
	}

	data, err := engine.BuildCalendar(snap.Name, snap.LocationID, *snap.Summary, s.clock.Now())
	if err != nil {
		slog.Error(config.ErrCalendarBuild,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyLocation, snap.LocationID,
			config.LogKeyError, err,
		)
		return
	}
	s.Update(snap.LocationID, data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthView{
		Status:    config.HTTPStatusOK,
		Version:   config.Version,
		Locations: len(s.calendars),
		Languages: s.Languages,
	})
}

func (s *Server) handleLocations(w http.ResponseWriter, _ *http.Request) {
	now := s.clock.Now()
	coords := s.registry.List()

	views := make([]locationView, 0, len(coords))
	for _, c := range coords {
		views = append(views, s.view(c.Current(), now))
	}
	writeJSON(w, http.StatusOK, views)
}

// handleLocation serves the cached state, refreshing it first when stale.
func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	c, ok := s.registry.Get(r.PathValue(config.PathValueID))
	if !ok {
		http.Error(w, config.HTTPMsgNotFound, http.StatusNotFound)
		return
	}

	snap, err := c.Refresh(r.Context())
	s.writeSnapshot(w, snap, err)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	c, ok := s.registry.Get(r.PathValue(config.PathValueID))
	if !ok {
		http.Error(w, config.HTTPMsgNotFound, http.StatusNotFound)
		return
	}

	slog.Info(config.MsgManualRefresh,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyLocation, c.LocationID(),
	)
	snap, err := c.ForceRefresh(r.Context())
	s.writeSnapshot(w, snap, err)
}

// writeSnapshot answers with the snapshot, or 503 when nothing is cached yet
// and the refresh could not complete.
func (s *Server) writeSnapshot(w http.ResponseWriter, snap refresh.Snapshot, err error) {
	if err != nil && !snap.HasSummary() {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgRefreshAbort, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.view(snap, s.clock.Now()))
}

// view flattens a snapshot with days_until recomputed against now.
func (s *Server) view(snap refresh.Snapshot, now time.Time) locationView {
	v := locationView{
		ID:        snap.LocationID,
		Name:      snap.Name,
		Entries:   []engine.Entry{},
		LastError: snap.LastError,
		Calendar:  snap.LocationID + config.CalendarFileExt,
	}
	if !snap.LastUpdated.IsZero() {
		t := snap.LastUpdated
		v.LastUpdated = &t
	}
	if !snap.LastAttempt.IsZero() {
		t := snap.LastAttempt
		v.LastAttempt = &t
	}
	if snap.HasSummary() {
		sum := snap.Summary.Rebase(now)
		v.NextType = sum.NextType
		v.Type = sum.NextType
		v.NextDate = sum.NextDate
		v.NextDaysUntil = sum.NextDaysUntil
		v.Entries = sum.Entries
		v.Error = sum.Error
	}
	return v
}

// handleCalendarRequest serves the ICS content with HTTP caching support.
func (s *Server) handleCalendarRequest(w http.ResponseWriter, r *http.Request) {
	// 1. Method Validation
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set(config.HeaderAllow, config.AllowedMethods)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
		return
	}

	// 2. Resolve Location
	id, found := strings.CutSuffix(r.PathValue(config.PathValueFile), config.CalendarFileExt)
	slot, ok := s.calendars[id]
	if !found || !ok {
		http.Error(w, config.HTTPMsgNotFound, http.StatusNotFound)
		return
	}

	// 3. Readiness Check
	item := slot.Load()
	if item == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}

	// 4. Set Response Headers
	w.Header().Set(config.HeaderContentType, config.MimeTextCalendar)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.Header().Set(config.HeaderCacheControl, config.CacheControlPrivate)
	w.Header().Set(config.HeaderETag, item.etag)
	w.Header().Set(config.HeaderLastModified, item.lastModified)

	// 5. Check Conditional Headers
	if match := r.Header.Get(config.HeaderIfNoneMatch); match == item.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	if since := r.Header.Get(config.HeaderIfModifiedSince); since != "" {
		if clientTime, err := time.Parse(http.TimeFormat, since); err == nil {
			if serverTime, err := time.Parse(http.TimeFormat, item.lastModified); err == nil {
				if !serverTime.After(clientTime) {
					w.WriteHeader(http.StatusNotModified)
					return
				}
			}
		}
	}

	// 6. Serve Content
	if r.Method == http.MethodGet {
		if _, err := io.Copy(w, bytes.NewReader(item.data)); err != nil {
			slog.Error(config.ErrWriteResp,
				config.LogKeyComponent, config.CompServer,
				config.LogKeyError, err,
			)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HeaderContentType, config.MimeJSON)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(config.ErrEncodeJSON,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}
