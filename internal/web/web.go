// Package web renders the HTML pages of the service.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var files embed.FS

// Page template names.
const (
	PageIndex    = "index.html"
	PageMyOrders = "my_orders.html"
	PageLogin    = "login.html"
)

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string {
		return d.StringFixed(2)
	},
	"date": func(t time.Time) string {
		return t.Format("02.01.2006")
	},
	"datetime": func(t time.Time) string {
		return t.Format("02.01.2006 15:04:05")
	},
}

// Renderer executes page templates, each combined with the base layout.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	pages := make(map[string]*template.Template)

	for _, name := range []string{PageIndex, PageMyOrders, PageLogin} {
		t, err := template.New(name).Funcs(funcs).ParseFS(files, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}

	return &Renderer{pages: pages}, nil
}

// Render writes the page with the given status code. The page is fully
// executed before anything is written, so a failed render leaves w untouched.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data any) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("execute template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)

	return err
}
