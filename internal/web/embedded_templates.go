package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
)

//go:embed templates/*.html
var EmbeddedTemplatesFS embed.FS

const baseTemplate = "base.html"

// Renderer turns a template name and its data bindings into markup
type Renderer interface {
	Render(name string, data any) (string, error)
}

// TemplateRenderer renders the page templates, each combined with base.html
type TemplateRenderer struct {
	templates map[string]*template.Template
}

// NewTemplateRenderer parses every page template found under templates/ in fsys.
// Pass EmbeddedTemplatesFS to use the templates compiled into the binary.
func NewTemplateRenderer(fsys fs.FS) (*TemplateRenderer, error) {
	entries, err := fs.ReadDir(fsys, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	r := &TemplateRenderer{templates: make(map[string]*template.Template)}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".html") || name == baseTemplate {
			continue
		}
		// Don't use ParseGlob - every page defines its own "content" block
		tmpl, err := template.ParseFS(fsys, "templates/"+baseTemplate, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	if len(r.templates) == 0 {
		return nil, fmt.Errorf("no page templates found")
	}
	return r, nil
}

// Render executes the page template name with data
func (r *TemplateRenderer) Render(name string, data any) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, baseTemplate, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
