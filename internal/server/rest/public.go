package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/server/services"
)

const healthTimeout = 2 * time.Second

type visitRequest struct {
	Path      string `json:"path"`
	SessionID string `json:"sessionId"`
}

type subscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type unsubscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// recordVisit accepts a page view. Only a malformed body is reported;
// everything after that is best effort.
func (s *Server) recordVisit(w http.ResponseWriter, r *http.Request) {
	var req visitRequest
	if err := readJSON(w, r, &req, false); err != nil {
		s.errs.write(w, r, err)
		return
	}
	s.deps.Visitors.RecordVisit(r.Context(), services.VisitInput{
		Path:      req.Path,
		SessionID: req.SessionID,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
	})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) visitorSummary(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	summary, err := s.deps.Visitors.Summary(r.Context(), days)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}
	sub, created, err := s.deps.Newsletter.Subscribe(r.Context(), req.Email)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, sub)
}

func (s *Server) unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}
	if err := s.deps.Newsletter.Unsubscribe(r.Context(), req.Email, req.Token); err != nil {
		s.errs.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSubscribers(w http.ResponseWriter, r *http.Request) {
	var active *bool
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.errs.write(w, r, common.NewValidationError("active", "must be a boolean"))
			return
		}
		active = &v
	}
	subs, err := s.deps.Newsletter.List(r.Context(), active)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(subs))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := s.deps.DB.PingContext(ctx); err != nil {
		s.log.Warn(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
