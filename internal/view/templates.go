package view

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dojo-planner/dojo/internal/shared"
	"github.com/dojo-planner/dojo/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	money     Money
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Data        any
}

// Option customises the engine.
type Option func(*Engine)

// WithMoney sets the currency formatter behind the money template func.
func WithMoney(m Money) Option {
	return func(e *Engine) { e.money = m }
}

// NewEngine parses the embedded templates.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{money: DefaultMoney()}
	for _, opt := range opts {
		opt(e)
	}
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02-01-2006 15:04")
		},
		"money": func(d decimal.Decimal) string { return e.money.Format(d) },
		"dict":  dict,
	}
	tpl, err := template.New("root").Funcs(funcMap).ParseFS(web.Templates(), web.TemplatePatterns...)
	if err != nil {
		return nil, err
	}
	e.templates = tpl
	return e, nil
}

// dict builds a map from alternating keys and values so partials can take
// more than one argument.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict: odd number of arguments")
	}
	out := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
		}
		out[key] = pairs[i+1]
	}
	return out, nil
}

// Defined reports whether a template with the given name was parsed.
func (e *Engine) Defined(name string) bool {
	return e != nil && e.templates.Lookup(name) != nil
}

// Money returns the engine's currency formatter.
func (e *Engine) Money() Money {
	return e.money
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}
