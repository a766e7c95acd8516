package http

import (
	"net/http"

	applog "fintrack/internal/log"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, token, err := s.auth.Register(r.Context(),
		p.Get("username"),
		p.Secret("password"),
		p.Secret("registration_key"))
	if err != nil {
		s.logger.WarnContext(r.Context(), "Registration rejected",
			applog.FieldUsername, p.Get("username"),
			applog.FieldError, err.Error())
		writeError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "User registered",
		applog.FieldUserID, user.ID,
		applog.FieldUsername, user.Username,
		applog.FieldRole, string(user.Role))

	s.setSessionCookie(w, token)
	NewJSONResponse().
		Status(http.StatusCreated).
		Message("Registration successful").
		Field("role", user.Role).
		Field("user", user.Actor()).
		Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, token, err := s.auth.Login(r.Context(), p.Get("username"), p.Secret("password"))
	if err != nil {
		s.logger.WarnContext(r.Context(), "Login failed",
			applog.FieldUsername, p.Get("username"),
			applog.FieldClientIP, s.securityDetector.ExtractClientIP(r))
		writeError(w, r, err)
		return
	}

	s.setSessionCookie(w, token)
	NewJSONResponse().
		Message("Login successful").
		Field("role", user.Role).
		Field("user", user.Actor()).
		Write(w)
}

// handleLogout always clears the cookie, even for sessions that already expired.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := s.auth.Logout(r.Context(), token); err != nil {
			writeError(w, r, err)
			return
		}
	}
	s.clearSessionCookie(w)
	NewJSONResponse().Message("Logged out").Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(currentActor(r)).Write(w)
}
