package command

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Template is a named, reusable MDM command body. Templates carry no
// CommandUUID; the engine assigns one per submission.
type Template struct {
	Type    string  `yaml:"type" json:"type"`
	Payload Payload `yaml:"payload" json:"payload"`
}

// Catalog holds the command templates loaded at startup.
type Catalog struct {
	templates map[string]Template
	order     []string
}

type catalogFile struct {
	Commands []Template `yaml:"commands"`
}

// defaultCatalog covers the common lock command so the service is usable
// without a catalog file.
var defaultCatalog = []Template{
	{
		Type: "DeviceLock",
		Payload: Payload{
			"MessageType": "DeviceLock",
			"PIN":         "1234",
		},
	},
}

// LoadCatalog reads command templates from a YAML file. An empty path yields
// the built-in defaults.
func LoadCatalog(path string) (*Catalog, error) {
	templates := defaultCatalog
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read command catalog: %w", err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse command catalog: %w", err)
		}
		templates = file.Commands
	}

	c := &Catalog{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		if t.Type == "" {
			return nil, fmt.Errorf("command catalog: template missing type")
		}
		if len(t.Payload) == 0 {
			return nil, fmt.Errorf("command catalog: template %q has no payload", t.Type)
		}
		if _, exists := c.templates[t.Type]; exists {
			return nil, fmt.Errorf("command catalog: duplicate template %q", t.Type)
		}
		c.templates[t.Type] = t
		c.order = append(c.order, t.Type)
	}
	return c, nil
}

// Get returns the template for a command type.
func (c *Catalog) Get(commandType string) (Template, bool) {
	t, ok := c.templates[commandType]
	return t, ok
}

// Templates returns all templates in file order.
func (c *Catalog) Templates() []Template {
	out := make([]Template, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.templates[name])
	}
	return out
}

// Instantiate returns a fresh payload copy of the template so callers can
// mutate it (UUID injection) without affecting the catalog.
func (t Template) Instantiate() Payload {
	p := make(Payload, len(t.Payload))
	for k, v := range t.Payload {
		p[k] = v
	}
	return p
}
