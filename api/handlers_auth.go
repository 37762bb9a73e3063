package api

import (
	"net/http"

	"broker-calls/auth"
	models "broker-calls/database/models_pkg"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse is the public user shape; the password hash never leaves the server
type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// handleRegister creates an account and signs the user in
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	session, err := s.auth.Register(r.Context(), in)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.setAuthCookie(w, session.Token)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status": "success",
		"token":  session.Token,
		"data":   map[string]interface{}{"user": toUserResponse(session.User)},
	})
}

// handleLogin verifies credentials and issues a token
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	session, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.setAuthCookie(w, session.Token)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"token":  session.Token,
		"data":   map[string]interface{}{"user": toUserResponse(session.User)},
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.CurrentUser(r.Context(), UserFrom(r.Context()).ID)
	if err != nil {
		s.respondWithError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]interface{}{"user": toUserResponse(user)})
}

// handleLogout revokes the presented token and clears the cookie
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), tokenFrom(r.Context())); err != nil {
		s.respondWithError(w, r, err)
		return
	}

	s.clearAuthCookie(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Successfully logged out",
	})
}
