package http

import (
	"context"
	"errors"
	"net/http"

	"khoroch/internal/auth"
	applog "khoroch/internal/log"
	"khoroch/internal/session"
)

// SessionCookie carries the signed session token.
const SessionCookie = "khoroch_session"

type stateKey struct{}

// currentState returns the session attached by authed. Handlers behind authed
// can rely on it being non-nil.
func currentState(ctx context.Context) *session.State {
	st, _ := ctx.Value(stateKey{}).(*session.State)
	return st
}

// authed resolves the session cookie to a live session. Anything else, from a
// missing cookie to a session evicted by TTL, sends the browser to /login.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.sessionFrom(r)
		if err != nil {
			applog.FromContext(r.Context()).DebugContext(r.Context(), "Unauthenticated request",
				applog.FieldPath, r.URL.Path, applog.FieldError, err)
			s.clearCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		logger := applog.FromContext(r.Context()).With(
			applog.FieldUser, st.User(),
			applog.FieldSessionID, st.ID(),
		)
		ctx := context.WithValue(r.Context(), stateKey{}, st)
		ctx = applog.WithLogger(ctx, logger)
		next(w, r.WithContext(ctx))
	}
}

var errNoSession = errors.New("no live session")

func (s *Server) sessionFrom(r *http.Request) (*session.State, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, err
	}
	claims, err := s.tokens.Validate(c.Value)
	if err != nil {
		return nil, err
	}
	st, ok := s.sessions.Get(claims.SessionID)
	if !ok || st.User() != claims.Username {
		return nil, errNoSession
	}
	return st, nil
}

type loginView struct {
	page
	Username string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessionFrom(r); err == nil {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", loginView{page: page{Title: "Sign in", Path: "/login"}})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context())
	form, err := s.parseLoginForm(w, r)
	if err != nil {
		view := loginView{page: page{Title: "Sign in", Path: "/login", Error: "Enter your name and password."}, Username: form.Username}
		s.render(w, r, http.StatusUnprocessableEntity, "login.html", view)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	user, err := s.authenticator.Authenticate(ctx, form.Username, form.Password)
	if err != nil {
		logger.WarnContext(ctx, "Login rejected",
			applog.FieldUser, form.Username,
			applog.FieldClientIP, s.clientIP.ClientIP(r),
			applog.FieldOperation, applog.OpLogin)
		view := loginView{page: page{Title: "Sign in", Path: "/login", Error: "Wrong name or password."}, Username: form.Username}
		status := http.StatusUnauthorized
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			status = http.StatusInternalServerError
			view.Error = "Sign in is unavailable right now."
		}
		s.render(w, r, status, "login.html", view)
		return
	}

	st, err := s.sessions.Start(ctx, user.Name)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to start session", applog.FieldUser, user.Name, applog.FieldError, err)
		s.renderError(w, r, http.StatusServiceUnavailable, "Could not load expenses, try again shortly.")
		return
	}
	token, err := s.tokens.Generate(user.Name, st.ID())
	if err != nil {
		s.sessions.End(st.ID())
		logger.ErrorContext(ctx, "Failed to sign session token", applog.FieldError, err)
		s.renderError(w, r, http.StatusInternalServerError, "Sign in failed.")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.tokens.Duration().Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	logger.InfoContext(ctx, "User logged in",
		applog.FieldUser, user.Name,
		applog.FieldSessionID, st.ID(),
		applog.FieldOperation, applog.OpLogin)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	st := currentState(r.Context())
	s.sessions.End(st.ID())
	s.clearCookie(w)
	applog.FromContext(r.Context()).InfoContext(r.Context(), "User logged out", applog.FieldOperation, applog.OpLogout)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleRefresh reloads the session from the record store, picking up rows
// written by other processes.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	if err := s.sessions.Refresh(ctx, currentState(r.Context()).ID()); err != nil {
		applog.FromContext(r.Context()).ErrorContext(ctx, "Refresh failed",
			applog.FieldOperation, applog.OpRefresh, applog.FieldError, err)
		s.renderError(w, r, http.StatusServiceUnavailable, "Could not reload expenses, try again shortly.")
		return
	}
	http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
}

func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
