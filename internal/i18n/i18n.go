// Package i18n resolves the UI locale and prints messages from the embedded
// catalogs. Vietnamese is the default locale.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/authdeck/internal/form"
	"github.com/Dicklesworthstone/authdeck/internal/gateway"
	"github.com/Dicklesworthstone/authdeck/internal/provider"
)

//go:embed locales/*.yaml
var localesFS embed.FS

// DefaultLocale is used when nothing better matches.
var DefaultLocale = language.Vietnamese

var supported = []language.Tag{language.Vietnamese, language.English}

var matcher = language.NewMatcher(supported)

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

var (
	loadOnce sync.Once
	builder  *catalog.Builder
	keys     map[string]struct{}
	loadErr  error
)

// Supported returns the locales with a catalog.
func Supported() []language.Tag {
	return append([]language.Tag(nil), supported...)
}

// Resolve picks the best supported locale for pref. An empty pref falls
// back to LC_ALL, LC_MESSAGES and LANG, then to DefaultLocale.
func Resolve(pref string) language.Tag {
	candidates := []string{pref}
	if strings.TrimSpace(pref) == "" {
		candidates = []string{os.Getenv("LC_ALL"), os.Getenv("LC_MESSAGES"), os.Getenv("LANG")}
	}

	for _, c := range candidates {
		c = normalizePOSIX(c)
		if c == "" {
			continue
		}
		tag, err := language.Parse(c)
		if err != nil {
			continue
		}
		_, idx, conf := matcher.Match(tag)
		if conf == language.No {
			continue
		}
		return supported[idx]
	}
	return DefaultLocale
}

// normalizePOSIX turns "en_US.UTF-8" into "en-US". "C" and "POSIX" become "".
func normalizePOSIX(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".@"); i >= 0 {
		s = s[:i]
	}
	if s == "C" || s == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(s, "_", "-")
}

func load() (*catalog.Builder, map[string]struct{}, error) {
	loadOnce.Do(func() {
		builder, keys, loadErr = loadFromFS(localesFS)
	})
	return builder, keys, loadErr
}

func loadFromFS(fsys fs.FS) (*catalog.Builder, map[string]struct{}, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	sort.Strings(paths)

	files := make(map[language.Tag]map[string]string)
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		var f catalogFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		tag, err := language.Parse(strings.TrimSpace(f.Locale))
		if err != nil {
			return nil, nil, fmt.Errorf("catalog %s: locale %q: %w", path, f.Locale, err)
		}
		files[tag] = f.Messages
	}

	base, ok := files[DefaultLocale]
	if !ok {
		return nil, nil, fmt.Errorf("default locale %s has no catalog", DefaultLocale)
	}

	b := catalog.NewBuilder(catalog.Fallback(DefaultLocale))
	all := make(map[string]struct{}, len(base))
	for tag, messages := range files {
		for key, msg := range messages {
			if err := b.SetString(tag, key, msg); err != nil {
				return nil, nil, fmt.Errorf("catalog %s: key %q: %w", tag, key, err)
			}
			all[key] = struct{}{}
		}
		// Keys missing from a translation fall back to the default locale.
		if tag == DefaultLocale {
			continue
		}
		for key, msg := range base {
			if _, ok := messages[key]; ok {
				continue
			}
			if err := b.SetString(tag, key, msg); err != nil {
				return nil, nil, fmt.Errorf("catalog %s: key %q: %w", tag, key, err)
			}
		}
	}
	return b, all, nil
}

// Catalog prints messages for one locale.
type Catalog struct {
	tag     language.Tag
	printer *message.Printer
	keys    map[string]struct{}
}

// New returns a catalog for the best match of pref.
func New(pref string) (*Catalog, error) {
	b, k, err := load()
	if err != nil {
		return nil, err
	}
	tag := Resolve(pref)
	return &Catalog{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(b)),
		keys:    k,
	}, nil
}

// MustNew is New that panics on a broken embedded catalog.
func MustNew(pref string) *Catalog {
	c, err := New(pref)
	if err != nil {
		panic(err)
	}
	return c
}

// Tag returns the catalog's locale.
func (c *Catalog) Tag() language.Tag { return c.tag }

// Has reports whether key exists in any catalog.
func (c *Catalog) Has(key string) bool {
	_, ok := c.keys[key]
	return ok
}

// T formats the message for key. Unknown keys are returned unchanged.
func (c *Catalog) T(key string, args ...any) string {
	if !c.Has(key) {
		return key
	}
	return c.printer.Sprintf(key, args...)
}

// Failure returns the alert text for a classified gateway failure. screen
// selects per-screen wording where one exists.
func (c *Catalog) Failure(screen string, f gateway.Failure) string {
	if f == gateway.Canceled {
		return c.T("error.canceled")
	}
	if f.Code == provider.CodeNoCurrentUser {
		return c.T("error.not-authenticated")
	}
	if f.Unknown() {
		if f.Code == "" && f.Message == "" {
			return c.T("error.generic")
		}
		return c.T("error.unknown", f.Code, f.Message)
	}
	if screen != "" {
		if key := screen + ".error." + string(f.Category); c.Has(key) {
			return c.T(key)
		}
	}
	if key := "error." + string(f.Category); c.Has(key) {
		return c.T(key)
	}
	return c.T("error.generic")
}

// FieldError returns the inline text for a validation failure.
func (c *Catalog) FieldError(schema string, fe form.FieldError) string {
	args := []any{}
	if fe.Param != "" {
		args = append(args, fe.Param)
	}
	for _, key := range []string{
		"form." + schema + "." + string(fe.Field) + "." + string(fe.Kind),
		"form." + string(fe.Field) + "." + string(fe.Kind),
	} {
		if c.Has(key) {
			return c.T(key, args...)
		}
	}
	return c.T("form.invalid")
}
