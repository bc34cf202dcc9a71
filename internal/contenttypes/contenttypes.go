// Package contenttypes loads the static catalog of content types and prompt
// presets embedded in the binary.
package contenttypes

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"collegecontent/internal/core"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog is the immutable set of content types and presets.
type Catalog struct {
	types   map[string]core.ContentType
	order   []string
	presets []core.PromptPreset
}

type catalogFile struct {
	ContentTypes []core.ContentType  `yaml:"content_types"`
	Presets      []core.PromptPreset `yaml:"presets"`
}

var (
	defaultCatalog *Catalog
	loadErr        error
	once           sync.Once
)

// Default returns the embedded catalog, parsed once per process.
func Default() *Catalog {
	once.Do(func() {
		defaultCatalog, loadErr = Parse(catalogYAML)
	})
	if loadErr != nil {
		panic(fmt.Sprintf("embedded content type catalog is invalid: %v", loadErr))
	}
	return defaultCatalog
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(file.ContentTypes) == 0 {
		return nil, fmt.Errorf("catalog defines no content types")
	}

	c := &Catalog{types: make(map[string]core.ContentType, len(file.ContentTypes))}
	for _, ct := range file.ContentTypes {
		if ct.ID == "" {
			return nil, fmt.Errorf("content type %q has no id", ct.Name)
		}
		if _, dup := c.types[ct.ID]; dup {
			return nil, fmt.Errorf("duplicate content type %q", ct.ID)
		}
		if len(ct.DefaultTopics) == 0 || len(ct.DefaultPrompts) == 0 {
			return nil, fmt.Errorf("content type %q needs default topics and prompts", ct.ID)
		}
		c.types[ct.ID] = ct
		c.order = append(c.order, ct.ID)
	}
	c.presets = file.Presets
	return c, nil
}

// Lookup returns the content type with the given id.
func (c *Catalog) Lookup(id string) (core.ContentType, bool) {
	ct, ok := c.types[strings.ToLower(strings.TrimSpace(id))]
	return ct, ok
}

// Resolve returns the content type with the given id, or a generic custom
// descriptor named after id when the catalog has no such entry. The custom
// descriptor borrows the first catalog entry's default lists.
func (c *Catalog) Resolve(id string) core.ContentType {
	if ct, ok := c.Lookup(id); ok {
		return ct
	}
	base := c.types[c.order[0]]
	name := strings.TrimSpace(id)
	if name == "" {
		name = "Custom"
	}
	return core.ContentType{
		ID:             name,
		Name:           strings.ReplaceAll(name, "_", " "),
		Description:    "Custom content type",
		Sections:       []string{"Introduction", "Main Content", "Conclusion"},
		Length:         core.LengthBand{MinWords: 1000, MaxWords: 1500},
		Tone:           "Informative",
		DefaultTopics:  base.DefaultTopics,
		DefaultPrompts: base.DefaultPrompts,
	}
}

// All returns the content types in catalog order.
func (c *Catalog) All() []core.ContentType {
	out := make([]core.ContentType, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.types[id])
	}
	return out
}

// IDs returns the sorted content type ids.
func (c *Catalog) IDs() []string {
	ids := append([]string(nil), c.order...)
	sort.Strings(ids)
	return ids
}

// Presets returns the prompt presets in catalog order.
func (c *Catalog) Presets() []core.PromptPreset {
	return append([]core.PromptPreset(nil), c.presets...)
}

// Preset finds a preset by id or display name, case-insensitively.
func (c *Catalog) Preset(key string) (core.PromptPreset, bool) {
	key = strings.TrimSpace(key)
	for _, p := range c.presets {
		if strings.EqualFold(p.ID, key) || strings.EqualFold(p.Name, key) {
			return p, true
		}
	}
	return core.PromptPreset{}, false
}
