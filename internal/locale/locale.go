// Package locale turns pipeline errors into user-facing messages.
package locale

import (
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/tartampluch/go-uster-waste/internal/config"
	"github.com/tartampluch/go-uster-waste/internal/engine"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// kindKeys maps engine.ErrorKind labels to translation keys.
var kindKeys = map[string]string{
	engine.KindAuthExpired:   config.TKeyErrAuthExpired,
	engine.KindHTTPStatus:    config.TKeyErrHTTPStatus,
	engine.KindNetwork:       config.TKeyErrNetwork,
	engine.KindNoTable:       config.TKeyErrNoTable,
	engine.KindNoDataRows:    config.TKeyErrNoDataRows,
	engine.KindNoValidEntry:  config.TKeyErrNoValidEntry,
	engine.KindParse:         config.TKeyErrParse,
	engine.KindDateParse:     config.TKeyErrDateParse,
	engine.KindInvalidConfig: config.TKeyErrInvalidConfig,
	engine.KindUnexpected:    config.TKeyErrUnexpected,
}

// Localizer wraps the translation bundle for one language.
type Localizer struct {
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	languages []string
}

// New loads every embedded locale file and selects lang (falling back to English).
func New(lang string) *Localizer {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc(config.LocaleFormat, json.Unmarshal)

	l := &Localizer{bundle: bundle}

	entries, err := localeFS.ReadDir(config.LocalesDir)
	if err != nil {
		slog.Error(config.ErrLocalesAccess,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyError, err,
		)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, config.LocalePrefix) || !strings.HasSuffix(name, config.LocaleSuffix) {
			slog.Debug(config.MsgLocaleSkip,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		langCode := strings.TrimSuffix(strings.TrimPrefix(name, config.LocalePrefix), config.LocaleSuffix)
		if langCode == "" {
			slog.Warn(config.MsgLocaleBadName,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
			)
			continue
		}

		if _, err := bundle.LoadMessageFileFS(localeFS, config.LocalesDir+"/"+name); err != nil {
			slog.Error(config.ErrLocaleLoad,
				config.LogKeyComponent, config.CompI18n,
				config.LogKeyFile, name,
				config.LogKeyError, err,
			)
			continue
		}

		l.languages = append(l.languages, langCode)
		slog.Debug(config.MsgLocaleLoaded,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyLang, langCode,
		)
	}

	l.SetLanguage(lang)
	return l
}

// Languages lists the language codes found in the embedded locale files.
func (l *Localizer) Languages() []string {
	return append([]string(nil), l.languages...)
}

// SetLanguage switches the active language. Unknown codes fall back to English.
func (l *Localizer) SetLanguage(lang string) {
	if lang == "" {
		lang = config.DefaultLanguage
	}
	l.localizer = i18n.NewLocalizer(l.bundle, lang, config.DefaultLanguage)
}

// Msg translates key with optional template data. The key itself is returned
// when no translation exists.
func (l *Localizer) Msg(key string, data map[string]any) string {
	if l == nil || l.localizer == nil {
		return key
	}
	msg, err := l.localizer.Localize(&i18n.LocalizeConfig{MessageID: key, TemplateData: data})
	if err != nil {
		slog.Debug(config.MsgTransMissing,
			config.LogKeyComponent, config.CompI18n,
			config.LogKeyKey, key,
			config.LogKeyError, err,
		)
		return key
	}
	return msg
}

// ErrorMessage renders err as a human-readable sentence in the active language.
func (l *Localizer) ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	data := map[string]any{
		"URL":    config.TokenRefreshURL,
		"Detail": err.Error(),
	}
	var statusErr *engine.StatusError
	if errors.As(err, &statusErr) {
		data["Code"] = statusErr.Code
	}

	key, ok := kindKeys[engine.ErrorKind(err)]
	if !ok {
		return err.Error()
	}

	msg := l.Msg(key, data)
	if msg == key {
		return err.Error()
	}
	return msg
}
