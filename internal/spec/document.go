package spec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fyrsmithlabs/owera/internal/project"
)

// Errors.
var (
	ErrEmptySpec   = errors.New("specification is empty")
	ErrInvalidSpec = errors.New("invalid specification")
)

// Defaults applied when a description leaves them out.
const (
	DefaultName               = "SimpleApp"
	DefaultFeatureName        = "home page"
	DefaultFeatureDescription = "A basic home page to display a welcome message"
)

// DefaultTechnologies returns the stack used when none is given.
func DefaultTechnologies() []string {
	return []string{"Python/Flask", "HTML/CSS"}
}

// Document is the structured form of a specification.
type Document struct {
	Name         string            `json:"name" yaml:"name" toml:"name" validate:"nonblank"`
	Technologies []string          `json:"technologies,omitempty" yaml:"technologies,omitempty" toml:"technologies,omitempty"`
	Features     []FeatureDocument `json:"features" yaml:"features" toml:"features" validate:"required,min=1,dive"`
}

// FeatureDocument is one feature of a Document.
type FeatureDocument struct {
	Name        string   `json:"name" yaml:"name" toml:"name" validate:"nonblank"`
	Description string   `json:"description" yaml:"description" toml:"description" validate:"nonblank"`
	Constraints []string `json:"constraints,omitempty" yaml:"constraints,omitempty" toml:"constraints,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Validate checks required fields and reports every violation. Feature
// names must be unique once trimmed.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidSpec, err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidSpec, strings.Join(msgs, "; "))
	}

	seen := make(map[string]bool, len(d.Features))
	for _, f := range d.Features {
		name := strings.TrimSpace(f.Name)
		if seen[name] {
			return fmt.Errorf("%w: duplicate feature name %q", ErrInvalidSpec, name)
		}
		seen[name] = true
	}
	return nil
}

// withDefaults fills technologies only. Name and features are required.
func (d Document) withDefaults() Document {
	if len(d.Technologies) == 0 {
		d.Technologies = DefaultTechnologies()
	}
	return d
}

// Build validates d and creates the project.
func (d Document) Build() (*project.Project, error) {
	d = d.withDefaults()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	features := make([]project.Feature, 0, len(d.Features))
	for _, f := range d.Features {
		features = append(features, project.Feature{
			Name:        strings.TrimSpace(f.Name),
			Description: strings.TrimSpace(f.Description),
			Constraints: f.Constraints,
		})
	}
	p, err := project.New(strings.TrimSpace(d.Name), d.Technologies, features)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}
	return p, nil
}

// Merge overlays o on base. Features merge by name: the overlay's
// description wins and constraints are unioned. Technologies are unioned.
func Merge(base, o Document) Document {
	out := Document{
		Name:         base.Name,
		Technologies: union(base.Technologies, o.Technologies),
	}
	if strings.TrimSpace(o.Name) != "" {
		out.Name = o.Name
	}

	index := make(map[string]int, len(base.Features))
	for _, f := range base.Features {
		index[f.Name] = len(out.Features)
		f.Constraints = append([]string(nil), f.Constraints...)
		out.Features = append(out.Features, f)
	}
	for _, f := range o.Features {
		i, ok := index[f.Name]
		if !ok {
			index[f.Name] = len(out.Features)
			f.Constraints = append([]string(nil), f.Constraints...)
			out.Features = append(out.Features, f)
			continue
		}
		if strings.TrimSpace(f.Description) != "" {
			out.Features[i].Description = f.Description
		}
		out.Features[i].Constraints = union(out.Features[i].Constraints, f.Constraints)
	}
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
