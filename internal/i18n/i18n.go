// Package i18n loads the embedded message catalogs. A Catalog is built once at
// startup and passed to whatever renders text; there is no package-level
// current language.
package i18n

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type Lang string

const (
	English Lang = "en"
	Chinese Lang = "zh"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Catalog resolves dotted message keys ("form.title_add") for one language,
// falling back to English and finally to the key itself.
type Catalog struct {
	lang     Lang
	messages map[string]string
	fallback map[string]string
}

// Detect picks a language from the configured value, then the usual locale
// variables. Anything that is not Chinese resolves to English.
func Detect(configured string) Lang {
	candidates := []string{configured}
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG", "LANGUAGE"} {
		candidates = append(candidates, os.Getenv(env))
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" || c == "C" || c == "POSIX" {
			continue
		}
		return normalize(c)
	}
	return English
}

func normalize(v string) Lang {
	v = strings.ToLower(v)
	if i := strings.IndexAny(v, "_.-:@"); i >= 0 {
		v = v[:i]
	}
	if v == string(Chinese) {
		return Chinese
	}
	return English
}

// Load builds the catalog for lang.
func Load(lang Lang) (*Catalog, error) {
	fallback, err := loadMessages(English)
	if err != nil {
		return nil, err
	}
	c := &Catalog{lang: lang, messages: fallback, fallback: fallback}
	if lang != English {
		msgs, err := loadMessages(lang)
		if err != nil {
			return nil, err
		}
		c.messages = msgs
	}
	return c, nil
}

// MustLoad is Load for the embedded catalogs, which are known to parse.
func MustLoad(lang Lang) *Catalog {
	c, err := Load(lang)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Lang() Lang { return c.lang }

// T returns the message for key, formatted with args when any are given.
func (c *Catalog) T(key string, args ...any) string {
	msg, ok := c.messages[key]
	if !ok {
		msg, ok = c.fallback[key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Keys lists every key of the catalog's own language.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.messages))
	for k := range c.messages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func loadMessages(lang Lang) (map[string]string, error) {
	b, err := localeFS.ReadFile("locales/" + string(lang) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", lang, err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(b, &tree); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", lang, err)
	}
	out := map[string]string{}
	flatten("", tree, out)
	return out, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}
