package rest

import (
	"net/http"

	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/dmitrijs2005/blogkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type commentModerationRequest struct {
	Status          *string `json:"status" validate:"omitempty,oneof=pending approved flagged rejected"`
	FlagReason      *string `json:"flagReason"`
	ModerationNotes *string `json:"moderationNotes"`
}

type issueRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

type issueUpdateRequest struct {
	Status     string  `json:"status" validate:"required,oneof=pending resolved closed"`
	AdminNotes *string `json:"adminNotes"`
}

func (s *Server) adminListComments(w http.ResponseWriter, r *http.Request) {
	status := models.CommentStatus(r.URL.Query().Get("status"))
	comments, err := s.deps.Moderation.ListComments(r.Context(), status)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(comments))
}

func (s *Server) moderateComment(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req commentModerationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}
	upd := services.CommentModeration{
		FlagReason:      req.FlagReason,
		ModerationNotes: req.ModerationNotes,
	}
	if req.Status != nil {
		status := models.CommentStatus(*req.Status)
		upd.Status = &status
	}
	comment, err := s.deps.Moderation.UpdateCommentStatus(r.Context(), claims.UserID, chi.URLParam(r, "id"), upd)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}
	issue, err := s.deps.Moderation.CreateIssue(r.Context(), services.NewIssue{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (s *Server) adminListIssues(w http.ResponseWriter, r *http.Request) {
	status := models.IssueStatus(r.URL.Query().Get("status"))
	issues, err := s.deps.Moderation.ListIssues(r.Context(), status)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(issues))
}

func (s *Server) updateIssue(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req issueUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}
	issue, err := s.deps.Moderation.UpdateIssueStatus(r.Context(), claims.UserID, chi.URLParam(r, "id"), services.IssueUpdate{
		Status:     models.IssueStatus(req.Status),
		AdminNotes: req.AdminNotes,
	})
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}
