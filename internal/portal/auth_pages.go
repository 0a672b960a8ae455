package portal

import (
	"errors"
	"net/http"
	"strings"

	"github.com/frahmantamala/payment-portal/internal/apiclient"
	"github.com/frahmantamala/payment-portal/internal/authsession"
	"github.com/frahmantamala/payment-portal/internal/guard"
	"github.com/frahmantamala/payment-portal/internal/metrics"
	"github.com/frahmantamala/payment-portal/internal/session"
	"github.com/frahmantamala/payment-portal/internal/user"
	"github.com/frahmantamala/payment-portal/pkg/logger"
)

const (
	msgTooManyLogins = "Too many login attempts. Please wait a minute and try again."
	msgRegistered    = "Registration successful. Please sign in."
)

type loginForm struct {
	Username string
}

type registerForm struct {
	Email      string
	FullName   string
	Department string
	Role       user.Role
	ManagerID  string
	Roles      []user.Role
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	if visitorFrom(r.Context()).auth.IsAuthenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	p := s.newPage(r, "Sign in")
	p.Data = loginForm{}
	if r.URL.Query().Get("registered") == "1" {
		p.Notice = msgRegistered
	}
	s.render(w, r, http.StatusOK, "login", p)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	p := s.newPage(r, "Sign in")

	if err := r.ParseForm(); err != nil {
		p.Data = loginForm{}
		p.Error = apiclient.FallbackLogin
		s.render(w, r, http.StatusBadRequest, "login", p)
		return
	}
	form := loginForm{Username: strings.TrimSpace(r.PostForm.Get("username"))}
	p.Data = form

	if !s.limiter.Allow(v.store.ID()) {
		metrics.LoginThrottledTotal.Inc()
		logger.From(r.Context()).Warn("login throttled")
		p.Error = msgTooManyLogins
		s.render(w, r, http.StatusTooManyRequests, "login", p)
		return
	}

	if _, err := v.auth.Login(r.Context(), form.Username, r.PostForm.Get("password")); err != nil {
		p.Error = apiclient.Message(err, apiclient.FallbackLogin)
		s.render(w, r, http.StatusOK, "login", p)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) registerPage(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r, "Register")
	p.Data = registerForm{Role: user.RoleEmployee, Roles: user.Roles()}
	s.render(w, r, http.StatusOK, "register", p)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	p := s.newPage(r, "Register")

	if err := r.ParseForm(); err != nil {
		p.Data = registerForm{Role: user.RoleEmployee, Roles: user.Roles()}
		p.Error = apiclient.FallbackRegistration
		s.render(w, r, http.StatusBadRequest, "register", p)
		return
	}

	role := user.RoleEmployee
	if raw := r.PostForm.Get("role"); raw != "" {
		parsed, err := user.ParseRole(raw)
		if err != nil {
			p.Data = registerForm{Role: user.RoleEmployee, Roles: user.Roles()}
			p.Error = "Please select a valid role"
			s.render(w, r, http.StatusUnprocessableEntity, "register", p)
			return
		}
		role = parsed
	}

	profile := authsession.Profile{
		Email:           r.PostForm.Get("email"),
		Password:        r.PostForm.Get("password"),
		ConfirmPassword: r.PostForm.Get("confirm_password"),
		FullName:        r.PostForm.Get("full_name"),
		Department:      r.PostForm.Get("department"),
		Role:            role,
		ManagerID:       r.PostForm.Get("manager_id"),
	}
	p.Data = registerForm{
		Email:      profile.Email,
		FullName:   profile.FullName,
		Department: profile.Department,
		Role:       profile.Role,
		ManagerID:  profile.ManagerID,
		Roles:      user.Roles(),
	}

	if _, err := v.auth.Register(r.Context(), profile); err != nil {
		p.Error = errorMessage(err, apiclient.FallbackRegistration)
		s.render(w, r, http.StatusUnprocessableEntity, "register", p)
		return
	}
	http.Redirect(w, r, guard.LoginPath+"?registered=1", http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	visitorFrom(r.Context()).auth.Logout(r.Context())
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

func (s *Server) unauthorized(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusForbidden, "unauthorized", s.newPage(r, "Access denied"))
}

func (s *Server) setTheme(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if err := v.store.SetTheme(r.Context(), r.PostForm.Get("theme")); err != nil {
		if errors.Is(err, session.ErrInvalidTheme) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.From(r.Context()).Error("failed to save theme", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, localPath(r.PostForm.Get("return_to"), "/dashboard"), http.StatusSeeOther)
}

// localPath accepts only same-site absolute paths as redirect targets.
func localPath(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return fallback
	}
	return target
}
