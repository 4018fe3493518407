package rest

import (
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/server/auth"
	"github.com/dmitrijs2005/blogkeeper/internal/server/authz"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/go-chi/chi/v5"
)

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type initAdminRequest struct {
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password"`
	Name     string `json:"name" validate:"max=120"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type passwordResetConfirmRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type userResponse struct {
	User *models.User `json:"user"`
}

// identity returns the admin claims RequireRole put on the request.
func (s *Server) identity(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := authz.IdentityFromContext(r.Context())
	if !ok {
		s.errs.write(w, r, common.ErrorUnauthenticated)
		return nil, false
	}
	return claims, true
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !s.signIns.Consume(ip) {
		s.log.Warn(r.Context(), "sign-in rate limited", "ip", ip)
		s.errs.tooManyRequests(w, r, s.signIns.RetryAfter(ip))
		return
	}

	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}

	session, err := s.deps.Accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	s.signIns.Reset(ip)

	auth.SetSessionCookie(w, session.Token, s.opts.Cookie)
	writeJSON(w, http.StatusOK, userResponse{User: session.User})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, s.opts.Cookie)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.identity(w, r)
	if !ok {
		return
	}
	user, err := s.deps.Accounts.GetUser(r.Context(), claims.UserID)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (s *Server) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}
	if err := s.deps.Accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.errs.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) confirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}
	if err := s.deps.Accounts.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		s.errs.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// initAdmin creates or promotes the bootstrap admin. Anyone may call it
// while no admin exists; afterwards only an admin may.
func (s *Server) initAdmin(w http.ResponseWriter, r *http.Request) {
	exists, err := s.deps.Accounts.AdminExists(r.Context())
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	if exists {
		if _, err := s.deps.Gate.Authorize(r, models.RoleAdmin); err != nil {
			s.errs.write(w, r, err)
			return
		}
	}

	var req initAdminRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}
	email := firstNonEmpty(req.Email, s.opts.Admin.Email)
	password := firstNonEmpty(req.Password, s.opts.Admin.Password)
	name := firstNonEmpty(req.Name, s.opts.Admin.Name)

	user, created, err := s.deps.Accounts.UpsertAdmin(r.Context(), email, password, name)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	s.log.Info(r.Context(), "admin initialized", "user_id", user.ID, "created", created)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, userResponse{User: user})
}

func (s *Server) updatePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req updatePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}
	session, err := s.deps.Accounts.UpdatePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	// Older tokens were revoked; keep this browser signed in.
	auth.SetSessionCookie(w, session.Token, s.opts.Cookie)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Accounts.ListUsers(r.Context())
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(users))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.deps.Accounts.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) toggleUserStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.identity(w, r)
	if !ok {
		return
	}
	user, err := s.deps.Accounts.ToggleUserStatus(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.NewValidationError(name, "must be an integer")
	}
	return n, nil
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
