// Package msgcat holds the user-facing texts of the server as text/template strings
// loaded from YAML.
package msgcat

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaultFiles embed.FS

// Catalog maps dotted keys ("errors.illegal_move") to compiled templates. It is
// immutable once built and safe for concurrent use.
type Catalog struct {
	templates map[string]*template.Template
}

// New loads the embedded English texts and then the *.yaml / *.yml files of
// overrideDir, when given, in name order. Two override files setting the same key is
// an error.
func New(overrideDir string) (*Catalog, error) {
	texts, err := loadFS(defaultFiles, false)
	if err != nil {
		return nil, fmt.Errorf("embedded messages: %w", err)
	}
	if strings.TrimSpace(overrideDir) != "" {
		overrides, err := loadFS(os.DirFS(overrideDir), true)
		if err != nil {
			return nil, fmt.Errorf("messages in %s: %w", overrideDir, err)
		}
		for k, v := range overrides {
			texts[k] = v
		}
	}

	c := &Catalog{templates: make(map[string]*template.Template, len(texts))}
	for key, src := range texts {
		if strings.TrimSpace(src) == "" {
			continue
		}
		t, err := template.New(key).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", key, err)
		}
		c.templates[key] = t
	}
	return c, nil
}

// MustDefault returns the embedded catalog. It panics only if the embedded file is broken.
func MustDefault() *Catalog {
	c, err := New("")
	if err != nil {
		panic(err)
	}
	return c
}

func loadFS(fsys fs.FS, rejectDuplicates bool) (map[string]string, error) {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := fs.Glob(fsys, pattern)
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	texts := make(map[string]string)
	origin := make(map[string]string)
	for _, name := range files {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		var doc map[string]any
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		flat := make(map[string]string)
		if err := flatten(doc, "", flat); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		for k, v := range flat {
			if prev, ok := origin[k]; ok && rejectDuplicates {
				return nil, fmt.Errorf("duplicate override key %q in %s and %s", k, prev, path.Base(name))
			}
			origin[k] = path.Base(name)
			texts[k] = v
		}
	}
	return texts, nil
}

// flatten joins nested YAML keys with dots. Only string leaves are allowed.
func flatten(node any, prefix string, out map[string]string) error {
	switch v := node.(type) {
	case map[string]any:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := flatten(child, key, out); err != nil {
				return err
			}
		}
	case string:
		if prefix == "" {
			return fmt.Errorf("top-level string without a key")
		}
		out[prefix] = v
	case nil:
	default:
		return fmt.Errorf("unsupported value at %s: %T", prefix, v)
	}
	return nil
}

// Render executes the template stored under key. Unknown keys and missing data fields
// are errors.
func (c *Catalog) Render(key string, data any) (string, error) {
	t, ok := c.templates[strings.TrimSpace(key)]
	if !ok {
		return "", fmt.Errorf("template not found: %s", key)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Text renders key and falls back to the key itself, so callers always get something
// to show.
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
