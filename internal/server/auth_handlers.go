package server

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/Tomlord1122/todo-app/internal/auth"
	"github.com/Tomlord1122/todo-app/internal/domain"
	"github.com/Tomlord1122/todo-app/internal/service"
)

type authView struct {
	Flash  *flash
	Values map[string]string
	Errors map[string]string
}

func (s *Server) loginPageHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login", authView{Flash: s.popFlash(w, r)})
}

func (s *Server) registerPageHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "register", authView{Flash: s.popFlash(w, r)})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if isJSONBody(r) {
		if err := decodeJSONBody(w, r, &req); err != nil {
			s.writeDecodeError(w, r, err)
			return
		}
	} else {
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
	}

	values := map[string]string{"email": req.Email}
	key := throttleKey(r, req.Email)
	if !s.allowAttempt(r, key) {
		s.writeThrottled(w, r, "login", values)
		return
	}

	id, err := s.authService.Login(r.Context(), req)
	if err != nil {
		s.writeAuthError(w, r, "login", values, err)
		return
	}
	s.clearAttempts(r, key)
	s.startSession(w, r, id)
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if isJSONBody(r) {
		if err := decodeJSONBody(w, r, &req); err != nil {
			s.writeDecodeError(w, r, err)
			return
		}
	} else {
		req.Name = r.PostFormValue("name")
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
	}

	values := map[string]string{"name": req.Name, "email": req.Email}
	if !s.allowAttempt(r, throttleKey(r, "register")) {
		s.writeThrottled(w, r, "register", values)
		return
	}

	id, err := s.authService.Register(r.Context(), req)
	if err != nil {
		s.writeAuthError(w, r, "register", values, err)
		return
	}
	s.startSession(w, r, id)
}

// writeAuthError re-renders the form with field errors for browsers.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, page string, values map[string]string, err error) {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || wantsJSON(r) {
		s.writeServiceError(w, r, err, page)
		return
	}
	s.render(w, http.StatusUnprocessableEntity, page, authView{Values: values, Errors: ve.Fields})
}

// throttleKey scopes attempts to the submitted identifier and client address.
func throttleKey(r *http.Request, ident string) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "auth:" + strings.ToLower(strings.TrimSpace(ident)) + "|" + host
}

// allowAttempt fails open when no limiter is configured or it errors.
func (s *Server) allowAttempt(r *http.Request, key string) bool {
	if s.limiter == nil {
		return true
	}
	ok, err := s.limiter.Hit(r.Context(), key)
	if err != nil {
		s.log.Warn("throttle unavailable", "error", err)
		return true
	}
	if !ok {
		s.metrics.throttled.Inc()
	}
	return ok
}

func (s *Server) clearAttempts(r *http.Request, key string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Reset(r.Context(), key); err != nil {
		s.log.Warn("reset throttle", "error", err)
	}
}

func (s *Server) writeThrottled(w http.ResponseWriter, r *http.Request, page string, values map[string]string) {
	const msg = "Too many attempts. Please try again later."
	if wantsJSON(r) {
		respondWithError(w, http.StatusTooManyRequests, msg)
		return
	}
	s.render(w, http.StatusTooManyRequests, page, authView{Values: values, Errors: map[string]string{"email": msg}})
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	token, err := s.tokens.Issue(id)
	if err != nil {
		s.writeServiceError(w, r, err, "start session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	if wantsJSON(r) {
		respondWithJSON(w, http.StatusOK, map[string]any{"token": token, "user": id})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/auth/login", http.StatusFound)
}
