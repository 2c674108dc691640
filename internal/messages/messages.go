// Package messages maps error kinds to localized user-facing text.
package messages

import (
	_ "embed"
	"fmt"

	"visualsoal/internal/types"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// DefaultLocale is the locale of the original tool.
const DefaultLocale = "id"

// Catalog resolves kinds to text for one locale, falling back to English.
type Catalog struct {
	locale   string
	primary  map[types.Kind]string
	fallback map[types.Kind]string
}

// Load parses the embedded catalog for locale.
func Load(locale string) (*Catalog, error) {
	return Parse(catalogYAML, locale)
}

// MustLoad is Load for callers with a locale already validated by config.
func MustLoad(locale string) *Catalog {
	c, err := Load(locale)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse builds a catalog from YAML of the form {locale: {Kind: text}}.
func Parse(data []byte, locale string) (*Catalog, error) {
	var raw map[string]map[types.Kind]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse message catalog: %w", err)
	}
	if locale == "" {
		locale = DefaultLocale
	}
	primary, ok := raw[locale]
	if !ok {
		return nil, fmt.Errorf("no messages for locale %q", locale)
	}
	return &Catalog{locale: locale, primary: primary, fallback: raw["en"]}, nil
}

// Locale returns the catalog's locale.
func (c *Catalog) Locale() string {
	return c.locale
}

// Message returns the text for kind.
func (c *Catalog) Message(kind types.Kind) string {
	if msg, ok := c.primary[kind]; ok {
		return msg
	}
	if msg, ok := c.fallback[kind]; ok {
		return msg
	}
	return string(kind)
}

// Text renders err for display. Transport errors append what the remote
// side said.
func (c *Catalog) Text(err error) string {
	if err == nil {
		return ""
	}
	kind := types.KindOf(err)
	msg := c.Message(kind)
	if kind == types.KindTransport {
		if detail := types.Detail(err); detail != "" {
			return msg + " (" + detail + ")"
		}
	}
	return msg
}
