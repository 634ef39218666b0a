package http

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"khoroch/internal/core"
	applog "khoroch/internal/log"
	"khoroch/internal/services"
	"khoroch/internal/storage"
)

// Currency is prefixed to every rendered amount.
const Currency = "৳"

var templateFuncs = template.FuncMap{
	"money":      func(m core.Money) string { return Currency + groupThousands(m.String()) },
	"pct":        func(p float64) string { return fmt.Sprintf("%.1f%%", p) },
	"monthLabel": monthLabel,
}

// monthLabel renders "2024-05" as "May 2024"; anything else is returned as is.
func monthLabel(key string) string {
	y, m, err := core.ParseMonthKey(key)
	if err != nil {
		return key
	}
	return fmt.Sprintf("%s %d", time.Month(m), y)
}

// groupThousands inserts commas into the integer part of a "1234.50" string.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if frac != "" {
		return sign + b.String() + "." + frac
	}
	return sign + b.String()
}

// page holds what the layout needs on every screen.
type page struct {
	Title  string
	User   string
	Active string
	Path   string
	Error  string
}

type errorView struct {
	page
	Status int
}

// render executes into a buffer first so a template failure still produces a
// clean 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template render failed",
			"template", name,
			applog.FieldOperation, applog.OpRender,
			applog.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	view := errorView{
		page:   page{Title: http.StatusText(status), Error: msg, Path: r.URL.Path},
		Status: status,
	}
	if st := currentState(r.Context()); st != nil {
		view.User = st.User()
	}
	s.render(w, r, status, "error.html", view)
}

// writeServiceError maps expense service failures to a status and page.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		s.renderError(w, r, http.StatusUnprocessableEntity, strings.Join(problems(err), " "))
	case errors.Is(err, services.ErrForbidden):
		s.renderError(w, r, http.StatusForbidden, "Only the person who recorded an expense can change it.")
	case errors.Is(err, storage.ErrNotFound):
		s.renderError(w, r, http.StatusNotFound, "That expense no longer exists.")
	default:
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Expense write failed", err, applog.ComponentHTTP, r.Method+" "+r.URL.Path, nil)
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong saving the expense.")
	}
}

var returnTargets = map[string]bool{
	"/dashboard": true,
	"/personal":  true,
	"/history":   true,
}

// returnPath picks where to send the browser after a POST. Only local list
// pages are accepted, with their query kept for /history.
func returnPath(r *http.Request) string {
	raw := r.FormValue("return")
	if raw == "" {
		return "/dashboard"
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" || !returnTargets[u.Path] {
		return "/dashboard"
	}
	if u.RawQuery != "" && u.Path == "/history" {
		return u.Path + "?" + u.Query().Encode()
	}
	return u.Path
}
