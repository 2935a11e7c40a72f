package msgcat

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaultFiles embed.FS

// Catalog holds player-facing texts keyed by dotted path ("game.won").
// Entries are text/template sources, parsed on first use.
type Catalog struct {
	mu     sync.Mutex
	texts  map[string]string
	parsed map[string]*template.Template
}

// New loads the embedded messages, then every *.yaml / *.yml in overrideDir in name order.
// Later files replace earlier keys.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{texts: make(map[string]string), parsed: make(map[string]*template.Template)}

	raw, err := defaultFiles.ReadFile("messages.en.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded messages: %w", err)
	}
	if err := c.load(raw); err != nil {
		return nil, fmt.Errorf("embedded messages: %w", err)
	}

	dir := strings.TrimSpace(overrideDir)
	if dir == "" {
		return c, nil
	}
	files, err := overrideFiles(dir)
	if err != nil {
		return nil, err
	}
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := c.load(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return c, nil
}

func overrideFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("messages dir: %w", err)
	}
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, m...)
	}
	sort.Strings(files)
	return files, nil
}

func (c *Catalog) load(raw []byte) error {
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	flat := make(map[string]string)
	for k, v := range tree {
		if err := flatten(k, v, flat); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range flat {
		c.texts[k] = v
		delete(c.parsed, k)
	}
	return nil
}

func flatten(key string, v any, out map[string]string) error {
	switch node := v.(type) {
	case string:
		out[key] = node
	case map[string]any:
		for k, child := range node {
			if err := flatten(key+"."+k, child, out); err != nil {
				return err
			}
		}
	case nil:
	default:
		return fmt.Errorf("message %s: unsupported %T", key, v)
	}
	return nil
}

func (c *Catalog) template(key string) (*template.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.parsed[key]; ok {
		return t, nil
	}
	src, ok := c.texts[key]
	if !ok || strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("message not found: %s", key)
	}
	t, err := template.New(key).Option("missingkey=error").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", key, err)
	}
	c.parsed[key] = t
	return t, nil
}

// Render executes the message for key with data.
func (c *Catalog) Render(key string, data any) (string, error) {
	t, err := c.template(strings.TrimSpace(key))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Text is Render that falls back to the key itself.
func (c *Catalog) Text(key string, data any) string {
	if c == nil {
		return key
	}
	s, err := c.Render(key, data)
	if err != nil {
		return key
	}
	return s
}
