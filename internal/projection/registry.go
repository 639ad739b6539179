package projection

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jobrunner/travelmap/internal/domain"
)

// Info describes a registered projection.
type Info struct {
	Name       string `json:"name"`
	Params     string `json:"params,omitempty"`
	Invertible bool   `json:"invertible"`
	Iterative  bool   `json:"iterative"`
}

type factory struct {
	info    Info
	minArgs int
	maxArgs int
	build   func(args []float64, opts []Option) (Projection, error)
}

var registry = map[string]factory{
	"resize": {
		info:    Info{Name: "resize", Params: "sx[,sy]", Invertible: true},
		minArgs: 1, maxArgs: 2,
		build: func(a []float64, _ []Option) (Projection, error) {
			return NewResize(a[0], a[1:]...)
		},
	},
	"rotate": {
		info:    Info{Name: "rotate", Params: "degrees", Invertible: true},
		minArgs: 1, maxArgs: 1,
		build: func(a []float64, _ []Option) (Projection, error) {
			return NewRotate(a[0])
		},
	},
	"translate": {
		info:    Info{Name: "translate", Params: "dx[,dy]", Invertible: true},
		minArgs: 1, maxArgs: 2,
		build: func(a []float64, _ []Option) (Projection, error) {
			return NewTranslate(a[0], a[1:]...)
		},
	},
	"gallpeters": {
		info: Info{Name: "gallpeters", Invertible: true},
		build: func([]float64, []Option) (Projection, error) {
			return NewGallPeters(), nil
		},
	},
	"albers": {
		info:    Info{Name: "albers", Params: "phi1,phi2,lambda0,phi0", Invertible: true},
		minArgs: 4, maxArgs: 4,
		build: func(a []float64, _ []Option) (Projection, error) {
			return NewAlbers(a[0], a[1], a[2], a[3])
		},
	},
	"eckert4": {
		info: Info{Name: "eckert4", Invertible: true, Iterative: true},
		build: func(_ []float64, o []Option) (Projection, error) {
			return NewEckertIV(o...), nil
		},
	},
	"mollweide": {
		info: Info{Name: "mollweide", Invertible: true, Iterative: true},
		build: func(_ []float64, o []Option) (Projection, error) {
			return NewMollweide(o...), nil
		},
	},
	"naturalearth": {
		info: Info{Name: "naturalearth", Invertible: true, Iterative: true},
		build: func(_ []float64, o []Option) (Projection, error) {
			return NewNaturalEarth(o...), nil
		},
	},
	"naturalearth2": {
		info: Info{Name: "naturalearth2", Invertible: true, Iterative: true},
		build: func(_ []float64, o []Option) (Projection, error) {
			return NewNaturalEarth2(o...), nil
		},
	},
	"patterson": {
		info: Info{Name: "patterson"},
		build: func([]float64, []Option) (Projection, error) {
			return NewPatterson(), nil
		},
	},
	"robinson": {
		info: Info{Name: "robinson"},
		build: func([]float64, []Option) (Projection, error) {
			return NewRobinson(), nil
		},
	},
	"vandergrinten": {
		info: Info{Name: "vandergrinten", Invertible: true},
		build: func([]float64, []Option) (Projection, error) {
			return NewVanDerGrinten(), nil
		},
	},
}

var aliases = map[string]string{
	"scale":          "resize",
	"gallpetersproj": "gallpeters",
	"eckertiv":       "eckert4",
	"naturalearthii": "naturalearth2",
	"vdg":            "vandergrinten",
}

// Catalog returns all registered projections sorted by name.
func Catalog() []Info {
	out := make([]Info, 0, len(registry))
	for _, f := range registry {
		out = append(out, f.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered projection names sorted alphabetically.
func Names() []string {
	cat := Catalog()
	names := make([]string, len(cat))
	for i, info := range cat {
		names[i] = info.Name
	}
	return names
}

// New builds a single projection by name.
func New(name string, args []float64, opts ...Option) (Projection, error) {
	key := normalizeName(name)
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, domain.ErrProjectionNotFound)
	}
	if len(args) < f.minArgs || len(args) > f.maxArgs {
		return nil, &domain.ValidationError{
			Field:      key,
			Value:      args,
			Constraint: fmt.Sprintf("%d..%d arguments", f.minArgs, f.maxArgs),
			Message:    fmt.Sprintf("%s expects arguments %q", key, f.info.Params),
		}
	}
	p, err := f.build(args, opts)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Parse builds a projection from a pipeline description such as
// "naturalearth2 | rotate:45 | resize:2,1". A single stage yields the bare
// projection, several stages a *Compound.
func Parse(spec string, opts ...Option) (Projection, error) {
	parts := strings.Split(spec, "|")
	stages := make([]Projection, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, rawArgs, _ := strings.Cut(part, ":")
		args, err := parseArgs(name, rawArgs)
		if err != nil {
			return nil, err
		}
		p, err := New(name, args, opts...)
		if err != nil {
			return nil, err
		}
		stages = append(stages, p)
	}

	switch len(stages) {
	case 0:
		return nil, &domain.ValidationError{
			Field:      "projection",
			Value:      spec,
			Constraint: "non-empty",
			Message:    "projection pipeline is empty",
		}
	case 1:
		return stages[0], nil
	default:
		return NewCompound(stages...), nil
	}
}

// ParsePipeline builds a Compound from a list of stage descriptions.
func ParsePipeline(stages []string, opts ...Option) (*Compound, error) {
	c := NewCompound()
	for _, s := range stages {
		p, err := Parse(s, opts...)
		if err != nil {
			return nil, err
		}
		c.AddProjection(p)
	}
	return c, nil
}

func parseArgs(name, raw string) ([]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	fields := strings.Split(raw, ",")
	args := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, &domain.ValidationError{
				Field:      strings.TrimSpace(name),
				Value:      f,
				Constraint: "number",
				Message:    "projection argument is not a number",
			}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &domain.ValidationError{
				Field:      strings.TrimSpace(name),
				Value:      f,
				Constraint: "finite",
				Message:    "projection argument must be a finite number",
			}
		}
		args[i] = v
	}
	return args, nil
}

func normalizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(name)))
}
