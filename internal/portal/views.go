package portal

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/frahmantamala/payment-portal/internal/guard"
	"github.com/frahmantamala/payment-portal/internal/request"
	"github.com/frahmantamala/payment-portal/internal/user"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "layout.html"

// page is the data every template receives.
type page struct {
	Title  string
	User   *user.User
	Menu   []guard.Page
	Theme  string
	Path   string
	Error  string
	Notice string
	Data   interface{}
}

var funcs = template.FuncMap{
	"money": func(v float64) string {
		return fmt.Sprintf("$%.2f", v)
	},
	"date": func(t interface{}) string {
		switch v := t.(type) {
		case time.Time:
			if v.IsZero() {
				return ""
			}
			return v.Format("Jan 2, 2006")
		case *time.Time:
			if v == nil {
				return ""
			}
			return v.Format("Jan 2, 2006")
		default:
			return ""
		}
	},
	"datetime": func(t time.Time) string {
		return t.Format("Jan 2, 2006 15:04")
	},
	"statusLabel": func(s request.Status) string { return s.Label() },
	"tone":        func(s request.Status) string { return s.Tone() },
	"typeLabel":   func(t request.Type) string { return t.Label() },
	"roleLabel":   func(r user.Role) string { return r.Label() },
}

type views struct {
	pages map[string]*template.Template
}

func loadViews() (*views, error) {
	layout, err := template.New(layoutFile).Funcs(funcs).ParseFS(templateFS, "templates/"+layoutFile)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	v := &views{pages: map[string]*template.Template{}}
	for _, name := range names {
		base := path.Base(name)
		if base == layoutFile {
			continue
		}
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", base, err)
		}
		v.pages[strings.TrimSuffix(base, ".html")] = t
	}
	return v, nil
}

// render executes into a buffer first so a template error never leaves a
// half-written page.
func (v *views) render(w http.ResponseWriter, status int, name string, data page) error {
	t, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, layoutFile, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
