package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"khoroch/internal/core"
	"khoroch/internal/export"
	applog "khoroch/internal/log"
	"khoroch/internal/services"
	"khoroch/internal/storage"
)

func (s *Server) today() core.Date {
	return core.DateOf(s.now().In(s.loc))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st := currentState(r.Context())
	view := buildOverview(st.Expenses(), core.ScopeJoint, st.User(), s.today(), s.names)
	view.page = page{Title: "Joint", User: st.User(), Active: "dashboard", Path: "/dashboard"}
	view.Heading = "Joint expenses"
	s.render(w, r, http.StatusOK, "overview.html", view)
}

func (s *Server) handlePersonal(w http.ResponseWriter, r *http.Request) {
	st := currentState(r.Context())
	view := buildOverview(st.Expenses(), core.ScopePersonal, st.User(), s.today(), []string{st.User()})
	view.page = page{Title: "Personal", User: st.User(), Active: "personal", Path: "/personal"}
	view.Heading = "My expenses"
	s.render(w, r, http.StatusOK, "overview.html", view)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	st := currentState(r.Context())
	q := r.URL.Query()

	var f historyFilter
	var problem string
	if raw := strings.TrimSpace(q.Get("date")); raw != "" {
		day, err := core.ParseDate(raw)
		if err != nil {
			problem = "Date must look like 2024-05-31."
		}
		f.Day = day
	}
	if raw := strings.TrimSpace(q.Get("month")); raw != "" {
		if _, _, err := core.ParseMonthKey(raw); err != nil {
			problem = "Month must look like 2024-05."
		} else {
			f.Month = raw
		}
	}
	if raw := strings.TrimSpace(q.Get("scope")); raw != "" {
		f.Scope = core.Scope(strings.ToLower(raw))
		if !f.Scope.Valid() {
			problem = "Scope must be joint or personal."
			f.Scope = ""
		}
	}

	view := buildHistory(st.Expenses(), f, st.User(), s.names)
	view.page = page{Title: "History", User: st.User(), Active: "history", Path: r.URL.RequestURI(), Error: problem}
	status := http.StatusOK
	if problem != "" {
		status = http.StatusBadRequest
	}
	s.render(w, r, status, "history.html", view)
}

// handleExport streams a month of the session's expenses as a workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	st := currentState(r.Context())
	key := r.URL.Query().Get("month")
	if key == "" {
		key = s.today().MonthKey()
	}
	year, month, err := core.ParseMonthKey(key)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Month must look like 2024-05.")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(year, month)+`"`)
	if err := export.WriteMonth(w, st.Expenses(), year, month, s.names); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Export failed",
			applog.FieldOperation, applog.OpExport, applog.FieldError, err)
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	st := currentState(r.Context())
	form, in, err := s.parseExpenseForm(w, r)
	back := returnPath(r)
	if err != nil {
		s.renderForm(w, r, http.StatusUnprocessableEntity, "", back, form, problems(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if _, err := s.expenses.Create(ctx, st.User(), in); err != nil {
		if errors.Is(err, services.ErrValidation) {
			s.renderForm(w, r, http.StatusUnprocessableEntity, "", back, form, problems(err))
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request) {
	st := currentState(r.Context())
	id := r.PathValue("id")
	e, ok := st.Find(id)
	if !ok {
		s.writeServiceError(w, r, storage.ErrNotFound)
		return
	}
	if e.Name != st.User() {
		s.writeServiceError(w, r, services.ErrForbidden)
		return
	}
	s.renderForm(w, r, http.StatusOK, id, returnPath(r), formFromExpense(e), nil)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	st := currentState(r.Context())
	id := r.PathValue("id")
	form, in, err := s.parseExpenseForm(w, r)
	back := returnPath(r)
	if err != nil {
		s.renderForm(w, r, http.StatusUnprocessableEntity, id, back, form, problems(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if _, err := s.expenses.Update(ctx, st.User(), id, in); err != nil {
		if errors.Is(err, services.ErrValidation) {
			s.renderForm(w, r, http.StatusUnprocessableEntity, id, back, form, problems(err))
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	st := currentState(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := s.expenses.Delete(ctx, st.User(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, id, back string, form expenseForm, msgs []string) {
	st := currentState(r.Context())
	title := "New expense"
	if id != "" {
		title = "Edit expense"
	}
	view := formView{
		page:     page{Title: title, User: st.User(), Path: r.URL.Path},
		ID:       id,
		Return:   back,
		Form:     form,
		Problems: msgs,
	}
	s.render(w, r, status, "expense_form.html", view)
}
