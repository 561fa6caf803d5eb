package domain

import "strings"

// Locale is a supported UI language.
type Locale string

const (
	LocaleDE Locale = "de"
	LocaleEN Locale = "en"
	LocaleFR Locale = "fr"
	LocaleIT Locale = "it"
)

// DefaultLocale is used when a translation is missing.
const DefaultLocale = LocaleDE

// ParseLocale accepts tags such as "en", "EN" or "en-GB" and falls back to German.
func ParseLocale(raw string) Locale {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	switch Locale(tag) {
	case LocaleDE, LocaleEN, LocaleFR, LocaleIT:
		return Locale(tag)
	}
	return DefaultLocale
}

// Category classifies damages; names are kept per locale.
type Category struct {
	ID    string
	Names map[Locale]string
}

// Name returns the localized name, falling back to German and then to any name.
func (c *Category) Name(locale Locale) string {
	if n := c.Names[locale]; n != "" {
		return n
	}
	if n := c.Names[DefaultLocale]; n != "" {
		return n
	}
	for _, n := range c.Names {
		if n != "" {
			return n
		}
	}
	return ""
}
