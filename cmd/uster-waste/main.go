package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/natefinch/lumberjack"
	"github.com/tartampluch/go-uster-waste/internal/config"
	"github.com/tartampluch/go-uster-waste/internal/engine"
	"github.com/tartampluch/go-uster-waste/internal/locale"
	"github.com/tartampluch/go-uster-waste/internal/refresh"
	"github.com/tartampluch/go-uster-waste/internal/server"
	"github.com/tartampluch/go-uster-waste/internal/store"
)

// main is the application entry point.
// It delegates execution to runMain so that deferred calls run before
// os.Exit terminates the process.
func main() {
	os.Exit(runMain())
}

// runMain manages the application lifecycle, argument parsing, and exit codes.
func runMain() int {
	// -------------------------------------------------------------------------
	// 1. CLI Argument Parsing
	// -------------------------------------------------------------------------
	showVersion := flag.Bool(config.FlagVersion, false, config.FlagDescVersion)
	debugMode := flag.Bool(config.FlagDebug, false, config.FlagDescDebug)
	once := flag.Bool(config.FlagOnce, false, config.FlagDescOnce)
	envFile := flag.String(config.FlagEnvFile, config.DefaultEnvFile, config.FlagDescEnvFile)
	flag.Parse()

	if *showVersion {
		printVersion()
		return config.ExitCodeSuccess
	}

	if flag.Arg(0) == config.CmdSetToken {
		return setToken(flag.Args()[1:])
	}

	// -------------------------------------------------------------------------
	// 2. Configuration
	// -------------------------------------------------------------------------
	envMissing, err := loadEnvFile(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return config.ExitCodeError
	}

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return config.ExitCodeError
	}

	// -------------------------------------------------------------------------
	// 3. Logging Initialization
	// -------------------------------------------------------------------------
	logCloser := setupLogging(settings, *debugMode)
	if logCloser != nil {
		defer func() {
			_ = logCloser.Close()
		}()
	}

	if envMissing {
		slog.Debug(config.MsgEnvFileMissing,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyFile, *envFile,
		)
	}

	// -------------------------------------------------------------------------
	// 4. Context & Signal Handling
	// -------------------------------------------------------------------------
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logStartupInfo(settings)

	// -------------------------------------------------------------------------
	// 5. Application Logic
	// -------------------------------------------------------------------------
	if err := run(ctx, settings, *once); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
		return config.ExitCodeError
	}

	slog.Info(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
	return config.ExitCodeSuccess
}

// run wires the store, the per-location coordinators, the scheduler and the
// HTTP server, then blocks until ctx ends.
func run(ctx context.Context, settings config.Settings, once bool) error {
	st, err := store.Open(ctx, settings.Database)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	loc := locale.New(settings.Language)

	reg := refresh.NewRegistry()
	defer reg.Close()

	for _, l := range settings.Locations {
		coord := refresh.NewCoordinator(refresh.Options{
			Config: engine.FetchConfig{
				Token:       l.Token,
				LocationID:  l.ID,
				DisplayName: l.Name,
			},
			Runner:      engine.NewPipeline(settings.BaseURL, settings.MaxRows),
			Interval:    settings.Interval,
			Store:       st,
			FormatError: loc.ErrorMessage,
		})
		if err := coord.Restore(ctx); err != nil {
			slog.Warn(config.MsgRestoreFailed,
				config.LogKeyComponent, config.CompMain,
				config.LogKeyLocation, l.ID,
				config.LogKeyError, err,
			)
		}
		if err := reg.Add(coord); err != nil {
			return err
		}
	}

	if once {
		return printOnce(ctx, reg)
	}

	srv := server.New(settings.Addr(), reg, nil)
	srv.Languages = loc.Languages()

	sched, err := refresh.NewScheduler(reg, settings.Schedule, settings.Interval)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	go func() {
		<-ctx.Done()
		slog.Info(config.MsgCtxCancel, config.LogKeyComponent, config.CompMain)
	}()

	return srv.Start(ctx)
}

// onceResult is the JSON printed by -once for each location.
type onceResult struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Summary *engine.Summary `json:"summary"`
	Error   string          `json:"last_error,omitempty"`
}

// printOnce refreshes every location and writes the summaries to stdout.
func printOnce(ctx context.Context, reg *refresh.Registry) error {
	snaps, err := reg.RefreshAll(ctx, true)
	if err != nil {
		return err
	}

	out := make([]onceResult, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, onceResult{
			ID:      s.LocationID,
			Name:    s.Name,
			Summary: s.Summary,
			Error:   s.LastError,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// setToken implements the set-token subcommand.
func setToken(args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, config.CmdSetTokenUsage)
		return config.ExitCodeError
	}
	if err := config.StoreToken(args[0], args[1]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return config.ExitCodeError
	}
	fmt.Printf(config.MsgTokenStored, args[0])
	return config.ExitCodeSuccess
}

// loadEnvFile loads path into the process environment. A missing file is
// reported through missing, not as an error.
func loadEnvFile(path string) (missing bool, err error) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, fmt.Errorf("%s: %w", config.ErrEnvFile, err)
	}
	return false, nil
}

// printVersion outputs the build information to stdout.
func printVersion() {
	fmt.Printf(config.MsgVersionOutput,
		config.AppName,
		config.Version,
		runtime.GOOS,
		runtime.GOARCH,
	)
}

// logStartupInfo logs environment details useful for debugging.
func logStartupInfo(settings config.Settings) {
	slog.Info(config.MsgAppStarting,
		config.LogKeyComponent, config.CompMain,
		slog.Group(config.LogKeyBuild,
			slog.String(config.LogKeyApp, config.AppName),
			slog.String(config.LogKeyVersion, config.Version),
			slog.String(config.LogKeyGoVer, runtime.Version()),
		),
		slog.Group(config.LogKeyEnv,
			slog.String(config.LogKeyOS, runtime.GOOS),
			slog.String(config.LogKeyArch, runtime.GOARCH),
			slog.Int(config.LogKeyPID, os.Getpid()),
		),
		slog.Int(config.LogKeyCount, len(settings.Locations)),
		slog.String(config.LogKeyInterval, settings.Interval.String()),
		slog.String(config.LogKeySchedule, settings.Schedule),
	)
}

// setupLogging configures the default slog logger. Logs go to stdout and to
// a rotated file, either the configured one or app.log in the user cache dir.
func setupLogging(settings config.Settings, debugMode bool) io.Closer {
	writers := []io.Writer{os.Stdout}
	var rotator *lumberjack.Logger

	logPath := settings.LogFile
	if logPath == "" {
		if p, err := getLogFilePath(); err == nil {
			logPath = p
		} else {
			fmt.Fprintf(os.Stderr, config.MsgLogWarning, config.ErrLogFile, config.LogFileName, err)
		}
	}
	if logPath != "" {
		rotator = &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    config.LogMaxSizeMB,
			MaxBackups: config.LogMaxBackups,
			MaxAge:     config.LogMaxAgeDays,
		}
		writers = append(writers, rotator)
	}

	level := settings.LogLevel
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: debugMode,
	}

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), opts))
	slog.SetDefault(logger)

	if rotator == nil {
		return nil
	}
	return rotator
}

// getLogFilePath determines the platform-specific cache directory for logs.
func getLogFilePath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCacheDir, err)
	}

	appDir := filepath.Join(cacheDir, config.AppID)
	if err := os.MkdirAll(appDir, config.DirPermUserRWX); err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	return filepath.Join(appDir, config.LogFileName), nil
}
