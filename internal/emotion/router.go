package emotion

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/routes.yaml
var defaultRoutesYAML []byte

// Route maps a set of free-form sentiment labels onto one preset.
type Route struct {
	Preset   string   `yaml:"preset"`
	Synonyms []string `yaml:"synonyms"`
}

type routeTable struct {
	Routes []Route `yaml:"routes"`
}

// Router resolves classifier labels to preset names. It is immutable once
// built and safe for concurrent use.
type Router struct {
	lookup map[string]string
	routes []Route
}

func NewRouter(routes []Route) (*Router, error) {
	r := &Router{
		lookup: make(map[string]string),
		routes: make([]Route, 0, len(routes)),
	}

	for _, route := range routes {
		if route.Preset == "" {
			return nil, fmt.Errorf("route with synonyms %v: %w", route.Synonyms, ErrEmptyName)
		}
		for _, syn := range route.Synonyms {
			key := strings.ToLower(syn)
			if prev, ok := r.lookup[key]; ok && prev != route.Preset {
				return nil, fmt.Errorf("synonym %q maps to both %q and %q", syn, prev, route.Preset)
			}
			r.lookup[key] = route.Preset
		}
		r.routes = append(r.routes, Route{
			Preset:   route.Preset,
			Synonyms: append([]string(nil), route.Synonyms...),
		})
	}

	return r, nil
}

func ParseRoutes(data []byte) (*Router, error) {
	var table routeTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	return NewRouter(table.Routes)
}

func LoadRoutesFile(path string) (*Router, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes: %w", err)
	}
	return ParseRoutes(data)
}

// DefaultRouter returns the built-in routing table.
func DefaultRouter() *Router {
	r, err := ParseRoutes(defaultRoutesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded routes: %v", err))
	}
	return r
}

// Resolve returns the preset a label maps to, or ErrUnroutableSentiment.
func (r *Router) Resolve(label string) (string, error) {
	preset, ok := r.lookup[strings.ToLower(label)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnroutableSentiment, label)
	}
	return preset, nil
}

// Route returns the preset to switch to, or false when the label is unknown
// or already names the current preset. Unknown labels never fall back to a
// default.
func (r *Router) Route(label, current string) (string, bool) {
	preset, err := r.Resolve(label)
	if err != nil || preset == current {
		return "", false
	}
	return preset, true
}

func (r *Router) Routes() []Route {
	out := make([]Route, len(r.routes))
	for i, route := range r.routes {
		out[i] = Route{Preset: route.Preset, Synonyms: append([]string(nil), route.Synonyms...)}
	}
	return out
}

// Presets lists the distinct canonical names in table order.
func (r *Router) Presets() []string {
	seen := make(map[string]bool, len(r.routes))
	var names []string
	for _, route := range r.routes {
		if !seen[route.Preset] {
			seen[route.Preset] = true
			names = append(names, route.Preset)
		}
	}
	return names
}
