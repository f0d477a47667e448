package api

import (
	"net/http"
	"time"

	"stock-trading-sim-go/internal/accounts"
	"stock-trading-sim-go/internal/models"
)

type registerRequest struct {
	FullName        string `json:"full_name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	SignupCode      string `json:"signup_code,omitempty"`
}

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signInResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   *models.Account `json:"account"`
	Redirect  string          `json:"redirect"`
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	s.register(w, r, models.RoleUser)
}

func (s *Server) createAdminAccount(w http.ResponseWriter, r *http.Request) {
	s.register(w, r, models.RoleAdmin)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, role models.Role) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	account, err := s.accounts.Register(r.Context(), accounts.RegisterRequest{
		FullName:        req.FullName,
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		SignupCode:      req.SignupCode,
	}, role)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, account)
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	session, account, err := s.accounts.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, s.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	redirect := "/home"
	if account.Role == models.RoleAdmin {
		redirect = "/home/admin"
	}
	WriteJSON(w, http.StatusOK, signInResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Account:   account,
		Redirect:  redirect,
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := s.accounts.SignOut(r.Context(), token); err != nil {
			writeServiceError(w, s.logger, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	WriteJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}
