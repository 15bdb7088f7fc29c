// Package views renders the HTML pages and fragments served by the handlers.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"etalase/internal/models"
	"etalase/internal/services"
)

//go:embed templates/*.html
var files embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"fixed": func(p models.Product) string { return p.Price.StringFixed(2) },
	"millis": func(d time.Duration) int64 { return d.Milliseconds() },
	"field": func(fields map[string]string, name string) string { return fields[name] },
}).ParseFS(files, "templates/*.html"))

// Layout carries what every full page needs.
type Layout struct {
	StoreName string
	Title     string
	LoggedIn  bool
}

type CatalogPage struct {
	Layout
	Query    string
	Listings []services.Listing
	Error    string
}

type LoginPage struct {
	Layout
	Email string
	Error string
}

type AdminPage struct {
	Layout
	Email          string
	Form           services.AdminForm
	EditingID      string
	FieldErrors    map[string]string
	Error          string
	Notice         services.Notice
	NoticeTTL      time.Duration
	Products       []models.Product
	CurrencySymbol string
}

// Render executes the named template into w.
func Render(w io.Writer, name string, data any) error {
	if pages.Lookup(name) == nil {
		return fmt.Errorf("unknown template %q", name)
	}
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}
