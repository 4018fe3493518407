package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/repomanager"
)

const unsubscribeTokenBytes = 16

type NewsletterService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mailer      Mailer
	siteURL     string
	log         logging.Logger
}

func NewNewsletterService(db *sql.DB, m repomanager.RepositoryManager, mailer Mailer, siteURL string, log logging.Logger) *NewsletterService {
	return &NewsletterService{
		db:          db,
		repomanager: m,
		mailer:      mailer,
		siteURL:     strings.TrimRight(siteURL, "/"),
		log:         log.With("module", "newsletter"),
	}
}

// Subscribe is idempotent. created is true only for a new address; an
// inactive subscriber is re-activated. The welcome mail is best-effort.
func (s *NewsletterService) Subscribe(ctx context.Context, email string) (sub *models.Subscriber, created bool, err error) {
	email = models.NormalizeEmail(email)
	if err := validateEmail("email", email); err != nil {
		return nil, false, err
	}

	repo := s.repomanager.Subscribers(s.db)

	sub, err = repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if sub.Active {
			return sub, false, nil
		}
		if sub, err = repo.SetActive(ctx, sub.ID, true); err != nil {
			return nil, false, fmt.Errorf("error reactivating subscriber: %w", err)
		}
		s.log.Info(ctx, "subscriber reactivated", "subscriber_id", sub.ID)
	case isNotFound(err):
		token, err := common.MakeRandHexString(unsubscribeTokenBytes)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", common.ErrorInternal, err)
		}
		sub, err = repo.Create(ctx, &models.Subscriber{Email: email, Active: true, UnsubscribeToken: token})
		if err != nil {
			return nil, false, fmt.Errorf("error creating subscriber: %w", err)
		}
		created = true
		s.log.Info(ctx, "subscriber created", "subscriber_id", sub.ID)
	default:
		return nil, false, fmt.Errorf("error searching subscriber: %w", err)
	}

	s.sendWelcome(ctx, sub)
	return sub, created, nil
}

func (s *NewsletterService) sendWelcome(ctx context.Context, sub *models.Subscriber) {
	q := url.Values{"email": {sub.Email}, "token": {sub.UnsubscribeToken}}
	link := s.siteURL + "/newsletter/unsubscribe?" + q.Encode()
	body := "Thanks for subscribing to the blog newsletter.\n\nTo stop receiving it, open:\n\n" + link + "\n"

	if err := s.mailer.Send(ctx, "Welcome to the newsletter", body, sub.Email); err != nil {
		s.log.Error(ctx, "failed to send welcome mail", "subscriber_id", sub.ID, "error", err)
	}
}

// Unsubscribe deactivates the subscriber when token matches.
func (s *NewsletterService) Unsubscribe(ctx context.Context, email, token string) error {
	email = models.NormalizeEmail(email)
	if err := validateEmail("email", email); err != nil {
		return err
	}
	if token == "" {
		return common.NewValidationError("token", "is required")
	}

	repo := s.repomanager.Subscribers(s.db)

	sub, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("error searching subscriber: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(sub.UnsubscribeToken), []byte(token)) != 1 {
		return common.NewValidationError("token", "does not match")
	}
	if !sub.Active {
		return nil
	}

	if _, err := repo.SetActive(ctx, sub.ID, false); err != nil {
		return fmt.Errorf("error deactivating subscriber: %w", err)
	}
	s.log.Info(ctx, "subscriber deactivated", "subscriber_id", sub.ID)
	return nil
}

func (s *NewsletterService) List(ctx context.Context, active *bool) ([]*models.Subscriber, error) {
	list, err := s.repomanager.Subscribers(s.db).List(ctx, active)
	if err != nil {
		return nil, fmt.Errorf("error listing subscribers: %w", err)
	}
	return list, nil
}
