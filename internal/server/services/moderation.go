package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/repomanager"
)

const (
	maxNameLength    = 120
	maxSubjectLength = 200
	maxMessageLength = 10000
	maxNotesLength   = 2000
)

// CommentModeration is a partial update; nil fields keep their value.
type CommentModeration struct {
	Status          *models.CommentStatus
	FlagReason      *string
	ModerationNotes *string
}

type IssueUpdate struct {
	Status     models.IssueStatus
	AdminNotes *string
}

type NewIssue struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// ModerationService changes the status of comments and issue reports and
// accepts new issue reports. Any transition within the status enum is
// allowed.
type ModerationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
	now         func() time.Time
}

func NewModerationService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *ModerationService {
	return &ModerationService{db: db, repomanager: m, log: log.With("module", "moderation"), now: time.Now}
}

func (s *ModerationService) ListComments(ctx context.Context, status models.CommentStatus) ([]*models.Comment, error) {
	if status != "" && !status.Valid() {
		return nil, common.NewValidationError("status", "unknown comment status")
	}
	list, err := s.repomanager.Comments(s.db).List(ctx, "", status)
	if err != nil {
		return nil, fmt.Errorf("error listing comments: %w", err)
	}
	return list, nil
}

func (s *ModerationService) UpdateCommentStatus(ctx context.Context, actorID, id string, upd CommentModeration) (*models.Comment, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, common.NewValidationError("status", "unknown comment status")
	}
	if err := maxLength("flagReason", upd.FlagReason, maxNotesLength); err != nil {
		return nil, err
	}
	if err := maxLength("moderationNotes", upd.ModerationNotes, maxNotesLength); err != nil {
		return nil, err
	}

	repo := s.repomanager.Comments(s.db)

	comment, err := repo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading comment: %w", err)
	}

	if upd.Status != nil {
		comment.Status = *upd.Status
	}
	if upd.FlagReason != nil {
		comment.FlagReason = optionalText(upd.FlagReason)
	}
	if upd.ModerationNotes != nil {
		comment.ModerationNotes = optionalText(upd.ModerationNotes)
	}

	updated, err := repo.UpdateModeration(ctx, comment)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error updating comment: %w", err)
	}
	s.log.Info(ctx, "comment moderated", "comment_id", id, "status", updated.Status, "actor_id", actorID)
	return updated, nil
}

func (s *ModerationService) ListIssues(ctx context.Context, status models.IssueStatus) ([]*models.Issue, error) {
	if status != "" && !status.Valid() {
		return nil, common.NewValidationError("status", "unknown issue status")
	}
	list, err := s.repomanager.Issues(s.db).List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("error listing issues: %w", err)
	}
	return list, nil
}

// UpdateIssueStatus stamps resolver and resolution time when the issue moves
// to resolved or closed and clears both when it goes back to pending.
func (s *ModerationService) UpdateIssueStatus(ctx context.Context, actorID, id string, upd IssueUpdate) (*models.Issue, error) {
	if !upd.Status.Valid() {
		return nil, common.NewValidationError("status", "unknown issue status")
	}
	if err := maxLength("adminNotes", upd.AdminNotes, maxNotesLength); err != nil {
		return nil, err
	}

	repo := s.repomanager.Issues(s.db)

	issue, err := repo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading issue: %w", err)
	}

	issue.Status = upd.Status
	if upd.AdminNotes != nil {
		issue.AdminNotes = optionalText(upd.AdminNotes)
	}
	if upd.Status.Terminal() {
		now := s.now()
		resolver := actorID
		issue.ResolvedAt = &now
		issue.ResolvedBy = &resolver
	} else {
		issue.ResolvedAt = nil
		issue.ResolvedBy = nil
	}

	updated, err := repo.UpdateStatus(ctx, issue)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error updating issue: %w", err)
	}
	s.log.Info(ctx, "issue updated", "issue_id", id, "status", updated.Status, "actor_id", actorID)
	return updated, nil
}

// CreateIssue stores a public report with status pending.
func (s *ModerationService) CreateIssue(ctx context.Context, in NewIssue) (*models.Issue, error) {
	name, err := requireText("name", in.Name, maxNameLength)
	if err != nil {
		return nil, err
	}
	email := models.NormalizeEmail(in.Email)
	if err := validateEmail("email", email); err != nil {
		return nil, err
	}
	subject, err := requireText("subject", in.Subject, maxSubjectLength)
	if err != nil {
		return nil, err
	}
	message, err := requireText("message", in.Message, maxMessageLength)
	if err != nil {
		return nil, err
	}

	issue, err := s.repomanager.Issues(s.db).Create(ctx, &models.Issue{
		Name:    name,
		Email:   email,
		Subject: subject,
		Message: message,
		Status:  models.IssuePending,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating issue: %w", err)
	}
	s.log.Info(ctx, "issue reported", "issue_id", issue.ID)
	return issue, nil
}
