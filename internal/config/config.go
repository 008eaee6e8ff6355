package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Uster-Waste/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName           = "Uster Waste"
	AppID             = "com.github.tartampluch.go-uster-waste"
	KeyringService    = "com.github.tartampluch.go-uster-waste"
	LocalhostBindAddr = "127.0.0.1"
	LogFileName       = "app.log"
)

// -----------------------------------------------------------------------------
// Log Rotation (lumberjack)
// -----------------------------------------------------------------------------

const (
	LogMaxSizeMB  = 10
	LogMaxBackups = 3
	LogMaxAgeDays = 28
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Flags, Subcommands & Descriptions
// -----------------------------------------------------------------------------

const (
	FlagVersion = "version"
	FlagDebug   = "debug"
	FlagOnce    = "once"
	FlagEnvFile = "env"

	FlagDescVersion = "Print version information and exit"
	FlagDescDebug   = "Enable debug logging (adds source locations)"
	FlagDescOnce    = "Refresh every location once, print the summaries as JSON and exit"
	FlagDescEnvFile = "Optional .env file to load before reading the environment"

	CmdSetToken      = "set-token"
	CmdSetTokenUsage = "usage: uster-waste set-token <location-id> <token>"

	DefaultEnvFile = ".env"
)

// -----------------------------------------------------------------------------
// Environment Variables
// -----------------------------------------------------------------------------

const (
	EnvPrefix          = "USTER_WASTE_"
	EnvPort            = EnvPrefix + "PORT"
	EnvBindAddr        = EnvPrefix + "BIND_ADDR"
	EnvBaseURL         = EnvPrefix + "BASE_URL"
	EnvName            = EnvPrefix + "NAME"
	EnvToken           = EnvPrefix + "TOKEN"
	EnvLocationID      = EnvPrefix + "LOCATION_ID"
	EnvLocationsFile   = EnvPrefix + "LOCATIONS_FILE"
	EnvRefreshInterval = EnvPrefix + "REFRESH_INTERVAL"
	EnvSchedule        = EnvPrefix + "SCHEDULE"
	EnvMaxRows         = EnvPrefix + "MAX_ROWS"
	EnvDatabase        = EnvPrefix + "DB"
	EnvLanguage        = EnvPrefix + "LANG"
	EnvLogFile         = EnvPrefix + "LOG_FILE"
	EnvLogLevel        = EnvPrefix + "LOG_LEVEL"
)

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	DefaultPort            = "18081"
	DefaultName            = "Uster Waste"
	DefaultBaseURL         = "https://www.uster.ch/abfallstrassenabschnitt"
	DefaultRefreshInterval = 24 * time.Hour
	DefaultLanguage        = "en"
	DefaultDatabaseFile    = "uster-waste.db"
	DefaultLogLevel        = "info"

	// DefaultMaxRows is the number of data rows read after the table header.
	// Only near-term collections are relevant.
	DefaultMaxRows = 3

	// SummaryLimit caps the entries exposed in a summary.
	SummaryLimit = 3

	// FormatEverySchedule builds a robfig/cron descriptor from a duration.
	FormatEverySchedule = "@every %s"
)

// Upstream query parameters expected by the schedule page.
const (
	QueryParamToken      = "strassenabschnitt[_token]"
	QueryParamLocationID = "strassenabschnitt[strassenabschnittId]"

	// TokenRefreshURL is where a user obtains a fresh token/URL.
	TokenRefreshURL = "https://www.uster.ch/abfallstrassenabschnitt"
)

// -----------------------------------------------------------------------------
// HTML Scraping
// -----------------------------------------------------------------------------

const (
	// SelectorPreferredTable matches the styled table the site renders.
	SelectorPreferredTable = "table.table.table-striped"
	SelectorAnyTable       = "table"
	SelectorRow            = "tr"
	SelectorCell           = "td"

	// ColumnType and ColumnDate index the cells of a data row.
	ColumnType = 0
	ColumnDate = 1
	MinCells   = 2

	NoBreakSpace = "\u00a0"
)

// -----------------------------------------------------------------------------
// Date Layouts
// -----------------------------------------------------------------------------

const (
	// Swiss dates, day.month.year. Go's two-digit year pivot applies to
	// DateLayoutShortYear: 69-99 map to 19xx, 00-68 map to 20xx.
	DateLayoutLongYear  = "2.1.2006"
	DateLayoutShortYear = "2.1.06"
	DateLayoutISO       = "2006-01-02"

	DateSeparator = "."
)

// -----------------------------------------------------------------------------
// Standards: iCalendar
// -----------------------------------------------------------------------------

const (
	ICalVersion = "2.0"
	ICalProdid  = "-//Uster Waste//Engine//DE"
	ICalMethod  = "PUBLISH"
	ICalScale   = "GREGORIAN"
	ICalDomain  = "uster-waste"

	PropUID        = "UID"
	PropSummary    = "SUMMARY"
	PropDTStart    = "DTSTART"
	PropDTStamp    = "DTSTAMP"
	PropRefresh    = "REFRESH-INTERVAL"
	PropLocation   = "LOCATION"
	PropVersion    = "VERSION"
	PropProdid     = "PRODID"
	PropXWRCalName = "X-WR-CALNAME"
	PropCalScale   = "CALSCALE"
	PropMethod     = "METHOD"

	FormatUID       = "%s-%s-%s@%s"
	FormatHashInput = "%s|%s"
	UIDHashLength   = 8
	FormatCalName   = "%s (%s)"

	DefaultICalRefresh = 12 * time.Hour

	// StubVCalendar is the minimal valid iCalendar object served when a
	// location has no upcoming collection.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"
)

// -----------------------------------------------------------------------------
// Cache Store (SQLite)
// -----------------------------------------------------------------------------

const (
	SQLiteDriver      = "sqlite"
	SQLiteMemoryDSN   = ":memory:"
	SQLiteBusyTimeout = 5 * time.Second
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	// HTTPTimeout bounds a single schedule request.
	HTTPTimeout         = 10 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServerReadTimeout   = 10 * time.Second
	ServerWriteTimeout  = 30 * time.Second
	ServerIdleTimeout   = 60 * time.Second
	RetryAfterSeconds   = "10"
	AllowedMethods      = "GET, HEAD"
	MaxHTTPResponseSize = 5 * 1024 * 1024 // 5MB
	SchemeHTTP          = "http"
	SchemeHTTPS         = "https"
	AddrSeparator       = ":"
	CalendarFileExt     = ".ics"

	MinPort = 1
	MaxPort = 65535
)

// HTTP routes served by the presentation server.
const (
	RouteHealth    = "GET /api/health"
	RouteLocations = "GET /api/locations"
	RouteLocation  = "GET /api/locations/{id}"
	RouteRefresh   = "POST /api/locations/{id}/refresh"
	RouteCalendar  = "/calendar/{file}"

	PathValueID   = "id"
	PathValueFile = "file"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderAccept          = "Accept"
	HeaderAcceptLanguage  = "Accept-Language"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"

	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeJSON            = "application/json"
	MimeHTML            = "text/html,application/xhtml+xml"
	AcceptLanguageDE    = "de-CH,de;q=0.9"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	ErrAuthExpired      = "token expired or invalid"
	ErrHTTPStatus       = "unexpected HTTP status"
	ErrNetwork          = "network error during fetch"
	ErrParse            = "failed to parse schedule page"
	ErrNoTable          = "no table found"
	ErrNoDataRows       = "no data rows"
	ErrNoValidEntries   = "no valid entries"
	ErrDateParse        = "unable to parse date"
	ErrInvalidConfig    = "invalid fetch configuration"
	ErrTokenEmpty       = "token is empty"
	ErrLocationEmpty    = "location id is empty"
	ErrFetcherMissing   = "internal error: schedule fetcher is not initialized"
	ErrInvalidURL       = "invalid URL structure"
	ErrProtocol         = "unsupported protocol scheme (http/https only)"
	ErrReadBody         = "failed to read response body"
	ErrICalEncode       = "failed to encode iCalendar data"
	ErrCoordinatorClose = "refresh coordinator closed"
	ErrDuplicateLoc     = "duplicate location id"
	ErrNoLocations      = "no locations configured"
	ErrInterval         = "refresh interval must be positive"
	ErrSchedule         = "invalid refresh schedule"
	ErrMaxRows          = "max rows must be a positive number"
	ErrLogLevel         = "invalid log level"
	ErrPortNumber       = "server port must be a number"
	ErrPortRange        = "server port must be between 1 and 65535"
	ErrLocationsFile    = "failed to read locations file"
	ErrKeyring          = "failed to access keyring"
	ErrEnvFile          = "failed to load env file"
	ErrServerStartup    = "server startup failed"
	ErrServerShutdown   = "server shutdown failed"
	ErrStoreOpen        = "failed to open cache store"
	ErrStoreMigrate     = "failed to migrate cache store"
	ErrStoreLoad        = "failed to load cached state"
	ErrStoreSave        = "failed to save cached state"
	ErrLogFile          = "failed to open log file"
	ErrCacheDir         = "could not determine user cache dir"
	ErrCreateDir        = "could not create app cache dir"
	ErrAppFailed        = "application failed unexpectedly"
	ErrWriteResp        = "failed to write response body"
	ErrEncodeJSON       = "failed to encode JSON response"
	ErrServerAddr       = "server address is required"
	ErrCalendarBuild    = "failed to build calendar"
	ErrLocalesAccess    = "failed to access embedded locales"
	ErrLocaleLoad       = "failed to load locale file"
	ErrSchedulerRunning = "scheduler already running"
	ErrRunnerPanic      = "schedule refresh panicked"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Schedule initializing, please try again shortly."
	HTTPMsgMethodNotAll = "Method Not Allowed"
	HTTPMsgNotFound     = "Location not found"
	HTTPMsgRefreshAbort = "Refresh aborted"
	HTTPStatusOK        = "ok"
)

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	MsgRefreshStarted   = "Schedule refresh started"
	MsgRefreshDone      = "Schedule refresh completed"
	MsgRefreshFailed    = "Schedule refresh failed"
	MsgRefreshCached    = "Serving cached schedule"
	MsgRefreshJoined    = "Refresh already in flight, joining"
	MsgRefreshDiscarded = "Refresh result discarded after shutdown"
	MsgStateRestored    = "Cached state restored"
	MsgStoreReady       = "Cache store ready"
	MsgStoreSaveFailed  = "Failed to persist refresh state"
	MsgFetchStarted     = "Requesting schedule page"
	MsgFetchDone        = "Schedule page downloaded"
	MsgFetchStatus      = "Server returned error status"
	MsgTableFallback    = "Styled table not found, falling back to first table"
	MsgSkippedDate      = "Skipping row with invalid date"
	MsgSkippedRow       = "Skipping row with too few cells"
	MsgParseSuccess     = "Schedule parsed"
	MsgSchedulerStart   = "Refresh scheduler started"
	MsgSchedulerStop    = "Refresh scheduler stopping"
	MsgScheduledRun     = "Scheduled refresh triggered"
	MsgAppStarting      = "Starting application"
	MsgAppStop          = "Application stopped gracefully"
	MsgServerListen     = "HTTP server listening"
	MsgServerStop       = "Shutting down HTTP server..."
	MsgCacheUpdated     = "Calendar cache updated"
	MsgManualRefresh    = "Manual refresh requested"
	MsgLocaleSkip       = "Skipping non-locale file"
	MsgLocaleBadName    = "Skipping malformed locale filename"
	MsgLocaleLoaded     = "Locale loaded successfully"
	MsgTransMissing     = "Missing translation key"
	MsgTokenFromKeyring = "Token loaded from keyring"
	MsgTokenStored      = "Token stored in keyring for location %s\n"
	MsgLocationAdded    = "Location registered"
	MsgLogWarning       = "Warning: %s at %s: %v\n"
	MsgVersionOutput    = "%s %s (%s/%s)\n"
	MsgEnvFileMissing   = "No env file found, using process environment"
	MsgCtxCancel        = "Shutdown signal received"
	MsgRestoreFailed    = "Could not restore cached state"
)

// -----------------------------------------------------------------------------
// Translation Keys (i18n)
// -----------------------------------------------------------------------------

const (
	LocalesDir    = "locales"
	LocalePrefix  = "active."
	LocaleSuffix  = ".json"
	LocaleFormat  = "json"

	TKeyErrAuthExpired   = "ErrAuthExpired"
	TKeyErrHTTPStatus    = "ErrHTTPStatus"
	TKeyErrNetwork       = "ErrNetwork"
	TKeyErrNoTable       = "ErrNoTable"
	TKeyErrNoDataRows    = "ErrNoDataRows"
	TKeyErrNoValidEntry  = "ErrNoValidEntries"
	TKeyErrParse         = "ErrParse"
	TKeyErrDateParse     = "ErrDateParse"
	TKeyErrInvalidConfig = "ErrInvalidConfig"
	TKeyErrUnexpected    = "ErrUnexpected"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent = "component"
	LogKeyError     = "error"
	LogKeyErrorKind = "error_kind"
	LogKeyURL       = "url"
	LogKeyStatus    = "status_code"
	LogKeyFile      = "file"
	LogKeyLang      = "lang"
	LogKeyKey       = "key"
	LogKeyInterval  = "interval"
	LogKeySchedule  = "schedule"
	LogKeyNextRun   = "next_run"
	LogKeyLocation  = "location_id"
	LogKeyName      = "name"
	LogKeyRunID     = "run_id"
	LogKeyForced    = "forced"
	LogKeyAge       = "cache_age"
	LogKeyRow       = "row"
	LogKeyValue     = "value"
	LogKeyCount     = "count"
	LogKeyRows      = "rows"
	LogKeyNext      = "next_type"
	LogKeyDays      = "days_until"
	LogKeySizeBytes = "size_bytes"
	LogKeyETag      = "etag"
	LogKeyAddr      = "addr"
	LogKeyDuration  = "duration_ms"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompEngine      = "engine"
	CompFetcher     = "fetcher"
	CompParser      = "parser"
	CompCoordinator = "coordinator"
	CompScheduler   = "scheduler"
	CompServer      = "server"
	CompStore       = "store"
	CompConfig      = "config"
	CompMain        = "main"
	CompI18n        = "i18n"
)
