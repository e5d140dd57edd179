package prompt

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template names understood by Default.
const (
	Outline    = "outline"
	Transcript = "transcript"
)

// Optional fields that templates may reference through index.
const (
	FieldRetryNote = "retry_note"
	FieldLanguage  = "language"
)

var (
	outlineRequired = []string{
		"briefing", "context", "speakers", "num_segments", "format_instructions",
	}
	transcriptRequired = []string{
		"briefing", "context", "speakers", "outline", "segment", "transcript",
		"is_final", "turns", "speaker_names", "format_instructions",
	}
)

// ErrTemplate matches every rendering failure.
var ErrTemplate = errors.New("template error")

// TemplateError reports an unknown template, a missing required field, or an
// execution failure.
type TemplateError struct {
	Template string
	Field    string
	Err      error
}

func (e *TemplateError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("template %q: required field %q is missing", e.Template, e.Field)
	case e.Err != nil:
		return fmt.Sprintf("template %q: %v", e.Template, e.Err)
	default:
		return fmt.Sprintf("template %q: unknown template", e.Template)
	}
}

func (e *TemplateError) Is(target error) bool { return target == ErrTemplate }

func (e *TemplateError) Unwrap() error { return e.Err }

// Values holds the named inputs for a render call.
type Values map[string]any

// Rendered is a prompt ready to send to a model.
type Rendered struct {
	System string
	User   string
}

// Spec describes one template to compile into a Registry.
type Spec struct {
	Name     string
	System   string
	User     string
	Required []string
}

type compiled struct {
	system   *template.Template
	user     *template.Template
	required []string
}

// Registry is an immutable set of compiled templates. It is safe for
// concurrent use.
type Registry struct {
	templates map[string]compiled
}

var funcs = template.FuncMap{
	"inc":  func(i int) int { return i + 1 },
	"join": strings.Join,
}

// NewRegistry compiles the supplied specs.
func NewRegistry(specs ...Spec) (*Registry, error) {
	reg := &Registry{templates: make(map[string]compiled, len(specs))}
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, errors.New("prompt registry: template name required")
		}
		if _, dup := reg.templates[name]; dup {
			return nil, fmt.Errorf("prompt registry: duplicate template %q", name)
		}
		system, err := parse(name+".system", spec.System)
		if err != nil {
			return nil, err
		}
		user, err := parse(name+".user", spec.User)
		if err != nil {
			return nil, err
		}
		reg.templates[name] = compiled{
			system:   system,
			user:     user,
			required: append([]string(nil), spec.Required...),
		}
	}
	return reg, nil
}

func parse(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("prompt registry: parse %s: %w", name, err)
	}
	return tmpl, nil
}

// Default returns a registry holding the embedded outline and transcript
// templates.
func Default() (*Registry, error) {
	specs := make([]Spec, 0, 2)
	for _, entry := range []struct {
		name     string
		required []string
	}{
		{Outline, outlineRequired},
		{Transcript, transcriptRequired},
	} {
		system, err := templateFS.ReadFile("templates/" + entry.name + "_system.tmpl")
		if err != nil {
			return nil, fmt.Errorf("prompt registry: %w", err)
		}
		user, err := templateFS.ReadFile("templates/" + entry.name + "_user.tmpl")
		if err != nil {
			return nil, fmt.Errorf("prompt registry: %w", err)
		}
		specs = append(specs, Spec{Name: entry.name, System: string(system), User: string(user), Required: entry.required})
	}
	return NewRegistry(specs...)
}

// Names lists the registered template names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render fills the named template. The context field accepts a string or a
// []string; a string is treated as a single item.
func (r *Registry) Render(name string, values Values) (Rendered, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return Rendered{}, &TemplateError{Template: name}
	}
	for _, field := range tmpl.required {
		if value, ok := values[field]; !ok || value == nil {
			return Rendered{}, &TemplateError{Template: name, Field: field}
		}
	}

	data := make(Values, len(values))
	for k, v := range values {
		data[k] = v
	}
	if ctx, ok := data["context"]; ok {
		items, err := contextItems(ctx)
		if err != nil {
			return Rendered{}, &TemplateError{Template: name, Err: err}
		}
		data["context"] = items
	}

	system, err := execute(tmpl.system, data)
	if err != nil {
		return Rendered{}, &TemplateError{Template: name, Err: err}
	}
	user, err := execute(tmpl.user, data)
	if err != nil {
		return Rendered{}, &TemplateError{Template: name, Err: err}
	}
	return Rendered{System: system, User: user}, nil
}

func execute(tmpl *template.Template, data Values) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func contextItems(value any) ([]string, error) {
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []string:
		return v, nil
	default:
		return nil, fmt.Errorf("context must be a string or []string, got %T", value)
	}
}
