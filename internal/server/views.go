package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/Tomlord1122/todo-app/internal/service"
)

//go:embed views/*.html
var templateFS embed.FS

//go:embed static
var assets embed.FS

type views struct {
	pages map[string]*template.Template
}

var viewFuncs = template.FuncMap{
	"snippet":     service.Snippet,
	"fieldErrors": fieldErrors,
	"todoForm": func(id uint) string {
		return fmt.Sprintf("todo-%d", id)
	},
	"richText": func(desc *string) template.HTML {
		clean := service.SanitizeDescription(desc)
		if clean == nil {
			return ""
		}
		return template.HTML(*clean)
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"percent": func(part, total int64) int64 {
		if total == 0 {
			return 0
		}
		return part * 100 / total
	},
}

func loadViews() (*views, error) {
	v := &views{pages: map[string]*template.Template{}}
	for _, page := range []string{"home", "login", "register"} {
		t, err := template.New("layout.html").Funcs(viewFuncs).ParseFS(templateFS, "views/layout.html", "views/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		v.pages[page] = t
	}
	return v, nil
}

// render executes a page into a buffer first so template errors never
// produce a half-written response.
func (s *Server) render(w http.ResponseWriter, status int, page string, data any) {
	t, ok := s.views.pages[page]
	if !ok {
		s.log.Error("unknown view", "page", page)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		s.log.Error("render view", "page", page, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
