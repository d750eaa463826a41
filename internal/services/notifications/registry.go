package notifications

import (
	_ "embed"
	"sort"

	"github.com/BearBump/MarketShip/internal/models"
	"github.com/pkg/errors"
	"go.yaml.in/yaml/v4"
)

//go:embed templates.yaml
var defaultTemplates []byte

type Template struct {
	Title    string           `yaml:"title"`
	Message  string           `yaml:"message"`
	Category string           `yaml:"category"`
	Priority models.Priority  `yaml:"priority"`
	Channels []models.Channel `yaml:"channels"`
	Actions  []models.Action  `yaml:"actions"`
}

// DefaultEnabled reports whether ch is one of the template's default channels.
func (t Template) DefaultEnabled(ch models.Channel) bool {
	for _, c := range t.Channels {
		if c == ch {
			return true
		}
	}
	return false
}

// Registry maps notification types to templates. It is read-only after load.
type Registry struct {
	templates map[string]Template
}

// LoadRegistry parses a YAML document of type -> template.
func LoadRegistry(doc []byte) (*Registry, error) {
	var raw map[string]Template
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	for typ, t := range raw {
		if t.Title == "" || t.Message == "" {
			return nil, errors.Errorf("template %q: title and message are required", typ)
		}
		for _, ch := range t.Channels {
			if (&models.Channels{}).Get(ch) == nil {
				return nil, errors.Errorf("template %q: unknown channel %q", typ, ch)
			}
		}
		if t.Priority == "" {
			t.Priority = models.PriorityMedium
		}
		if t.Category == "" {
			t.Category = "general"
		}
		raw[typ] = t
	}
	return &Registry{templates: raw}, nil
}

// DefaultRegistry loads the embedded templates.
func DefaultRegistry() (*Registry, error) {
	return LoadRegistry(defaultTemplates)
}

func (r *Registry) Lookup(typ string) (Template, bool) {
	t, ok := r.templates[typ]
	return t, ok
}

func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.templates))
	for typ := range r.templates {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}
