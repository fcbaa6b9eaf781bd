package narrate

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// BaseLocale is the source locale every other locale falls back to.
const BaseLocale = "en-US"

//go:embed locales/*/*.yaml
var embeddedLocales embed.FS

type catalogFile struct {
	Locale    string
	Namespace string
	Messages  map[string]string
}

// Catalog holds narration messages per locale and the x/text catalog built
// from them.
type Catalog struct {
	messages map[string]map[string]string
	tags     []language.Tag
	matcher  language.Matcher
	builder  *catalog.Builder
}

// LoadEmbedded loads the narration messages shipped with the binary.
func LoadEmbedded() (*Catalog, error) {
	return LoadFromFS(embeddedLocales)
}

// LoadFromFS loads locales/<locale>/<namespace>.yaml files. Every locale
// must define the keys of the base locale.
func LoadFromFS(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	c := &Catalog{messages: map[string]map[string]string{}}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		parsed, err := parseCatalogFile(data)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := c.addFile(p, parsed); err != nil {
			return nil, err
		}
	}
	base, ok := c.messages[BaseLocale]
	if !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}
	for _, locale := range c.Locales() {
		for key := range base {
			if _, ok := c.messages[locale][key]; !ok {
				return nil, fmt.Errorf("locale %s: missing key %q", locale, key)
			}
		}
	}
	if err := c.build(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) addFile(p string, file catalogFile) error {
	localeFromPath := path.Base(path.Dir(p))
	namespaceFromPath := strings.TrimSuffix(path.Base(p), path.Ext(p))

	locale := strings.TrimSpace(file.Locale)
	if locale != localeFromPath {
		return fmt.Errorf("catalog %s: locale %q must match path locale %q", p, locale, localeFromPath)
	}
	if namespace := strings.TrimSpace(file.Namespace); namespace != namespaceFromPath {
		return fmt.Errorf("catalog %s: namespace %q must match filename namespace %q", p, namespace, namespaceFromPath)
	}

	messages, ok := c.messages[locale]
	if !ok {
		messages = map[string]string{}
		c.messages[locale] = messages
	}
	for key, value := range file.Messages {
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		if _, exists := messages[key]; exists {
			return fmt.Errorf("catalog %s: duplicate key %q in locale %q", p, key, locale)
		}
		messages[key] = value
	}
	return nil
}

// build registers every message in a private x/text catalog so narration
// never leaks into message.DefaultCatalog.
func (c *Catalog) build() error {
	base := language.MustParse(BaseLocale)
	c.builder = catalog.NewBuilder(catalog.Fallback(base))
	c.tags = []language.Tag{base}
	for _, locale := range c.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("parse locale tag %q: %w", locale, err)
		}
		if locale != BaseLocale {
			c.tags = append(c.tags, tag)
		}
		messages := c.messages[locale]
		keys := make([]string, 0, len(messages))
		for key := range messages {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if err := c.builder.SetString(tag, key, messages[key]); err != nil {
				return fmt.Errorf("register %s %s: %w", locale, key, err)
			}
		}
	}
	c.matcher = language.NewMatcher(c.tags)
	return nil
}

// Locales returns the available locales in sorted order.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.messages))
	for locale := range c.messages {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Printer returns a printer for the closest supported locale and the tag
// it resolved to. Unknown locales resolve to the base locale.
func (c *Catalog) Printer(locale string) (*message.Printer, language.Tag) {
	tag := c.tags[0]
	if req, err := language.Parse(strings.TrimSpace(locale)); err == nil {
		_, idx, confidence := c.matcher.Match(req)
		if confidence > language.No {
			tag = c.tags[idx]
		}
	}
	return message.NewPrinter(tag, message.Catalog(c.builder)), tag
}

// parseCatalogFile reads the flat catalog format:
//
//	locale: "en-US"
//	namespace: "battle"
//	messages:
//	  "battle.round_start": "Round %d begins."
//
// Blank lines and # comments are ignored.
func parseCatalogFile(data []byte) (catalogFile, error) {
	out := catalogFile{Messages: map[string]string{}}
	headers := map[string]*string{"locale": &out.Locale, "namespace": &out.Namespace}
	inMessages := false

	for n, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || line[0] == '#' {
			continue
		}
		if inMessages {
			key, value, err := parseMessageEntry(line)
			if err != nil {
				return catalogFile{}, fmt.Errorf("line %d: %w", n+1, err)
			}
			out.Messages[key] = value
			continue
		}
		if line == "messages:" {
			inMessages = true
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		target, known := headers[strings.TrimSpace(name)]
		if !ok || !known {
			return catalogFile{}, fmt.Errorf("line %d: unexpected %q", n+1, line)
		}
		unquoted, err := strconv.Unquote(strings.TrimSpace(value))
		if err != nil {
			return catalogFile{}, fmt.Errorf("line %d: %s must be a quoted string", n+1, name)
		}
		*target = unquoted
	}

	for name, value := range map[string]string{"locale": out.Locale, "namespace": out.Namespace} {
		if value == "" {
			return catalogFile{}, fmt.Errorf("missing %s", name)
		}
	}
	if len(out.Messages) == 0 {
		return catalogFile{}, fmt.Errorf("no messages")
	}
	return out, nil
}

// parseMessageEntry splits a `"key": "value"` line.
func parseMessageEntry(line string) (key, value string, err error) {
	quotedKey, err := strconv.QuotedPrefix(line)
	if err != nil || quotedKey[0] != '"' {
		return "", "", fmt.Errorf("expected quoted key in %q", line)
	}
	key, _ = strconv.Unquote(quotedKey)
	rest, ok := strings.CutPrefix(strings.TrimSpace(line[len(quotedKey):]), ":")
	if !ok {
		return "", "", fmt.Errorf("key %q: missing ':'", key)
	}
	value, err = strconv.Unquote(strings.TrimSpace(rest))
	if err != nil {
		return "", "", fmt.Errorf("key %q: value must be a quoted string", key)
	}
	return key, value, nil
}
