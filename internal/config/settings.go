package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
	"github.com/zalando/go-keyring"
)

// Location is one collection zone to follow.
type Location struct {
	ID    string `toml:"id"`
	Name  string `toml:"name"`
	Token string `toml:"token"`
}

// locationsFile is the layout of the optional TOML locations file:
//
//	[[location]]
//	id = "1234"
//	name = "Home"
//	token = "..."   # optional, falls back to the keyring
type locationsFile struct {
	Locations []Location `toml:"location"`
}

// Settings is the validated runtime configuration.
type Settings struct {
	Port     string
	BindAddr string
	BaseURL  string

	Interval time.Duration
	Schedule string // cron expression; empty means "@every Interval"
	MaxRows  int

	Database string
	Language string
	LogFile  string
	LogLevel slog.Level

	Locations []Location
}

// Addr returns the listen address of the HTTP server.
func (s Settings) Addr() string {
	return s.BindAddr + AddrSeparator + s.Port
}

// Load reads the settings from the process environment.
// Tokens missing from both the environment and the locations file are looked
// up in the OS keyring (service KeyringService, user = location id).
func Load() (Settings, error) {
	s := Settings{
		Port:     envOr(EnvPort, DefaultPort),
		BindAddr: envOr(EnvBindAddr, LocalhostBindAddr),
		BaseURL:  envOr(EnvBaseURL, DefaultBaseURL),
		Interval: DefaultRefreshInterval,
		Schedule: strings.TrimSpace(os.Getenv(EnvSchedule)),
		MaxRows:  DefaultMaxRows,
		Database: os.Getenv(EnvDatabase),
		Language: envOr(EnvLanguage, DefaultLanguage),
		LogFile:  os.Getenv(EnvLogFile),
	}

	if err := s.LogLevel.UnmarshalText([]byte(envOr(EnvLogLevel, DefaultLogLevel))); err != nil {
		return Settings{}, fmt.Errorf("%s: %w", ErrLogLevel, err)
	}

	if v := os.Getenv(EnvRefreshInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", ErrInterval, err)
		}
		s.Interval = d
	}

	if v := os.Getenv(EnvMaxRows); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Settings{}, fmt.Errorf("%s: %w", ErrMaxRows, err)
		}
		s.MaxRows = n
	}

	if s.Database == "" {
		path, err := DefaultDatabasePath()
		if err != nil {
			return Settings{}, err
		}
		s.Database = path
	}

	locs, err := loadLocations()
	if err != nil {
		return Settings{}, err
	}
	s.Locations = locs

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the settings for consistency.
func (s Settings) Validate() error {
	if err := ValidatePort(s.Port); err != nil {
		return err
	}
	if s.Interval <= 0 {
		return errors.New(ErrInterval)
	}
	if s.Schedule != "" {
		if _, err := cron.ParseStandard(s.Schedule); err != nil {
			return fmt.Errorf("%s: %w", ErrSchedule, err)
		}
	}
	if s.MaxRows <= 0 {
		return errors.New(ErrMaxRows)
	}
	if len(s.Locations) == 0 {
		return errors.New(ErrNoLocations)
	}

	seen := make(map[string]bool, len(s.Locations))
	for _, loc := range s.Locations {
		if strings.TrimSpace(loc.ID) == "" {
			return fmt.Errorf("%s: %s", ErrInvalidConfig, ErrLocationEmpty)
		}
		if strings.TrimSpace(loc.Token) == "" {
			return fmt.Errorf("%s: %s (%s)", ErrInvalidConfig, ErrTokenEmpty, loc.ID)
		}
		if seen[loc.ID] {
			return fmt.Errorf("%s: %q", ErrDuplicateLoc, loc.ID)
		}
		seen[loc.ID] = true
	}
	return nil
}

// ValidatePort checks that port is a number within the TCP range.
func ValidatePort(port string) error {
	p, err := strconv.Atoi(port)
	if err != nil {
		return errors.New(ErrPortNumber)
	}
	if p < MinPort || p > MaxPort {
		return errors.New(ErrPortRange)
	}
	return nil
}

// DefaultDatabasePath returns the cache database location in the user cache dir.
func DefaultDatabasePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", ErrCacheDir, err)
	}
	return filepath.Join(cacheDir, AppID, DefaultDatabaseFile), nil
}

// StoreToken saves token for locationID in the OS keyring.
func StoreToken(locationID, token string) error {
	if strings.TrimSpace(locationID) == "" {
		return errors.New(ErrLocationEmpty)
	}
	if strings.TrimSpace(token) == "" {
		return errors.New(ErrTokenEmpty)
	}
	if err := keyring.Set(KeyringService, locationID, token); err != nil {
		return fmt.Errorf("%s: %w", ErrKeyring, err)
	}
	return nil
}

// loadLocations merges the locations file (if any) with the single location
// described by the environment, then fills missing tokens from the keyring.
func loadLocations() ([]Location, error) {
	var locs []Location

	if path := os.Getenv(EnvLocationsFile); path != "" {
		var file locationsFile
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("%s: %w", ErrLocationsFile, err)
		}
		locs = append(locs, file.Locations...)
	}

	if id := strings.TrimSpace(os.Getenv(EnvLocationID)); id != "" {
		locs = append(locs, Location{
			ID:    id,
			Name:  envOr(EnvName, DefaultName),
			Token: strings.TrimSpace(os.Getenv(EnvToken)),
		})
	}

	for i := range locs {
		locs[i].ID = strings.TrimSpace(locs[i].ID)
		if locs[i].Name == "" {
			locs[i].Name = DefaultName
		}
		if locs[i].Token != "" || locs[i].ID == "" {
			continue
		}

		token, err := keyring.Get(KeyringService, locs[i].ID)
		switch {
		case err == nil:
			locs[i].Token = token
			slog.Debug(MsgTokenFromKeyring,
				LogKeyComponent, CompConfig,
				LogKeyLocation, locs[i].ID)
		case errors.Is(err, keyring.ErrNotFound):
			// Reported by Validate as a missing token.
		default:
			return nil, fmt.Errorf("%s: %w", ErrKeyring, err)
		}
	}
	return locs, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
