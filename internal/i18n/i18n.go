// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package i18n loads the embedded message catalogs. Brazilian Portuguese is
// the default language.
package i18n

import (
	"context"
	"embed"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed translations/*.toml
var translationFS embed.FS

// DefaultLanguage is used when no better match exists.
var DefaultLanguage = language.BrazilianPortuguese

var supported = []language.Tag{
	language.BrazilianPortuguese,
	language.English,
}

var bundle *i18n.Bundle

type localeContextKey struct{}
type localizerContextKey struct{}

// Init initializes the i18n bundle with embedded translations.
func Init() error {
	b := i18n.NewBundle(DefaultLanguage)
	b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files := []string{
		"translations/active.pt-BR.toml",
		"translations/active.en.toml",
	}

	for _, file := range files {
		if _, err := b.LoadMessageFileFS(translationFS, file); err != nil {
			return err
		}
	}

	bundle = b
	return nil
}

// WithLocale adds the locale to the context.
func WithLocale(ctx context.Context, lang language.Tag) context.Context {
	locale := lang.String()
	ctx = context.WithValue(ctx, localeContextKey{}, locale)
	localizer := i18n.NewLocalizer(bundle, locale, DefaultLanguage.String())
	return context.WithValue(ctx, localizerContextKey{}, localizer)
}

// GetLocale returns the current locale from context.
func GetLocale(ctx context.Context) string {
	if locale, ok := ctx.Value(localeContextKey{}).(string); ok {
		return locale
	}
	return DefaultLanguage.String()
}

// T translates a message by ID.
func T(ctx context.Context, messageID string) string {
	return TData(ctx, messageID, nil)
}

// TData translates a message with template data.
func TData(ctx context.Context, messageID string, data map[string]any) string {
	localizer := getLocalizer(ctx)
	if localizer == nil {
		return messageID
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID
	}
	return msg
}

// MatchLanguage matches the best language from Accept-Language header.
func MatchLanguage(acceptLanguage string) language.Tag {
	matcher := language.NewMatcher(supported)
	_, index, confidence := matcher.Match(parseAccept(acceptLanguage)...)
	if confidence == language.No {
		return DefaultLanguage
	}
	return supported[index]
}

func parseAccept(acceptLanguage string) []language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return []language.Tag{DefaultLanguage}
	}
	return tags
}

func getLocalizer(ctx context.Context) *i18n.Localizer {
	if localizer, ok := ctx.Value(localizerContextKey{}).(*i18n.Localizer); ok {
		return localizer
	}
	if bundle == nil {
		return nil
	}
	return i18n.NewLocalizer(bundle, DefaultLanguage.String())
}
