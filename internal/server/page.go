package server

import (
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"scanviewer/internal/annotation"
	"scanviewer/internal/logging"
	"scanviewer/internal/shell"
)

//go:embed page.tmpl
var pageTemplate string

var pageFuncs = template.FuncMap{
	"title": func(s string) string {
		return cases.Title(language.English).String(s)
	},
	"progress": func(c annotation.Counts) string {
		total := c.Total()
		if total == 0 {
			return "0%"
		}
		return fmt.Sprintf("%.0f%%", float64(c.Valid)/float64(total)*100)
	},
	"active": func(selected, id int64) string {
		if selected == id {
			return "active"
		}
		return ""
	},
}

func parsePage() (*template.Template, error) {
	t, err := template.New("page").Funcs(pageFuncs).Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}
	return t, nil
}

type pageData struct {
	State shell.State
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, pageData{State: s.app.Snapshot()}); err != nil {
		logging.WithContext(r.Context(), s.logger).Error("page render failed", logging.Error(err))
	}
}
