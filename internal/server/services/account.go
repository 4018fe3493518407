package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/dbx"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/dmitrijs2005/blogkeeper/internal/server/auth"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/blogkeeper/internal/server/revocation"
)

const (
	passwordResetValidity = time.Hour
	resetTokenBytes       = 32
	defaultAdminName      = "Administrator"
)

// Session is the result of a successful sign-in: the account and a freshly
// signed token for the session cookie.
type Session struct {
	User   *models.User
	Token  string
	Claims *auth.Claims
}

// AccountService bootstraps admins, signs users in and manages passwords and
// the disabled flag.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.Hasher
	tokens      *auth.TokenManager
	revocations revocation.Store
	mailer      Mailer
	siteURL     string
	log         logging.Logger
	now         func() time.Time
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, hasher *auth.Hasher, tokens *auth.TokenManager,
	revocations revocation.Store, mailer Mailer, siteURL string, log logging.Logger) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		tokens:      tokens,
		revocations: revocations,
		mailer:      mailer,
		siteURL:     strings.TrimRight(siteURL, "/"),
		log:         log.With("module", "accounts"),
		now:         time.Now,
	}
}

// UpsertAdmin creates an admin or, when the email exists, replaces its
// password and name, forces role=admin and re-enables it. created reports
// which of the two happened.
func (s *AccountService) UpsertAdmin(ctx context.Context, email, password, name string) (user *models.User, created bool, err error) {
	email = models.NormalizeEmail(email)
	if err := validateEmail("email", email); err != nil {
		return nil, false, err
	}
	if err := validatePassword("password", password); err != nil {
		return nil, false, err
	}
	name = strings.TrimSpace(name)

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return nil, false, err
	}

	repo := s.repomanager.Users(s.db)

	existing, err := repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if name == "" {
			name = existing.Name
		}
		user, err = repo.PromoteAdmin(ctx, existing.ID, hash, name)
		if err != nil {
			return nil, false, fmt.Errorf("error updating admin: %w", err)
		}
		s.log.Info(ctx, "admin updated", "user_id", user.ID)
		return user, false, nil
	case isNotFound(err):
	default:
		return nil, false, fmt.Errorf("error searching user: %w", err)
	}

	if name == "" {
		name = defaultAdminName
	}
	verified := s.now()
	user, err = repo.Create(ctx, &models.User{
		Email:           email,
		Name:            name,
		PasswordHash:    hash,
		Role:            models.RoleAdmin,
		EmailVerifiedAt: &verified,
	})
	if err != nil {
		return nil, false, fmt.Errorf("error creating admin: %w", err)
	}
	s.log.Info(ctx, "admin created", "user_id", user.ID)
	return user, true, nil
}

// AdminExists reports whether at least one admin account exists.
func (s *AccountService) AdminExists(ctx context.Context) (bool, error) {
	n, err := s.repomanager.Users(s.db).CountByRole(ctx, models.RoleAdmin)
	if err != nil {
		return false, fmt.Errorf("error counting admins: %w", err)
	}
	return n > 0, nil
}

// SignIn checks credentials and issues a session token. Unknown emails,
// password-less accounts and wrong passwords are indistinguishable.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorInvalidCredential
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	if !user.HasPassword() {
		return nil, common.ErrorInvalidCredential
	}
	if err := s.hasher.Compare(ctx, user.PasswordHash, password); err != nil {
		return nil, err
	}
	if user.Disabled {
		return nil, fmt.Errorf("%w: account is disabled", common.ErrorForbidden)
	}

	return s.issue(user)
}

func (s *AccountService) issue(user *models.User) (*Session, error) {
	token, claims, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return &Session{User: user, Token: token, Claims: claims}, nil
}

// UpdatePassword replaces the actor's password after checking the current
// one, revokes the actor's older sessions and returns a new session for the
// caller.
func (s *AccountService) UpdatePassword(ctx context.Context, actorID, currentPassword, newPassword string) (*Session, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, actorID)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	if !user.HasPassword() {
		return nil, fmt.Errorf("%w: account has no password", common.ErrorNotFound)
	}
	if err := s.hasher.Compare(ctx, user.PasswordHash, currentPassword); err != nil {
		return nil, err
	}
	if err := validatePassword("newPassword", newPassword); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return nil, fmt.Errorf("error updating password: %w", err)
	}
	user.PasswordHash = hash

	if err := s.revocations.Revoke(ctx, user.ID, s.now()); err != nil {
		return nil, fmt.Errorf("error revoking sessions: %w", err)
	}
	s.log.Info(ctx, "password updated", "user_id", user.ID)

	return s.issue(user)
}

// ToggleUserStatus flips the target's disabled flag. Disabling revokes the
// target's sessions, so re-enabling does not revive them. Admins cannot
// toggle themselves.
func (s *AccountService) ToggleUserStatus(ctx context.Context, actorID, targetID string) (*models.User, error) {
	if actorID == targetID {
		return nil, common.NewValidationError("id", "you cannot change your own status")
	}

	user, err := s.repomanager.Users(s.db).ToggleDisabled(ctx, targetID)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error toggling user: %w", err)
	}
	user.PasswordHash = nil

	if user.Disabled {
		if err := s.revocations.Revoke(ctx, user.ID, s.now()); err != nil {
			return nil, fmt.Errorf("error revoking sessions: %w", err)
		}
	}

	s.log.Info(ctx, "user status toggled", "user_id", user.ID, "disabled", user.Disabled, "actor_id", actorID)
	return user, nil
}

func (s *AccountService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	for _, u := range users {
		u.PasswordHash = nil
	}
	return users, nil
}

func (s *AccountService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	user.PasswordHash = nil
	return user, nil
}

// RequestPasswordReset mails a one-hour reset link to an enabled account
// with a password. It returns nil for unknown accounts so callers cannot
// discover which emails exist.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	if err := validateEmail("email", email); err != nil {
		return err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			s.log.Debug(ctx, "password reset for unknown email")
			return nil
		}
		return fmt.Errorf("error searching user: %w", err)
	}
	if user.Disabled || !user.HasPassword() {
		s.log.Debug(ctx, "password reset not applicable", "user_id", user.ID)
		return nil
	}

	token, err := common.MakeRandHexString(resetTokenBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	_, err = s.repomanager.PasswordResets(s.db).Create(ctx, &models.PasswordReset{
		UserID:    user.ID,
		TokenHash: common.HashToken(token),
		ExpiresAt: s.now().Add(passwordResetValidity),
	})
	if err != nil {
		return fmt.Errorf("error storing reset request: %w", err)
	}

	link := s.siteURL + "/reset-password?token=" + token
	body := fmt.Sprintf("Hello %s,\n\nUse the link below within one hour to choose a new password:\n\n%s\n\n"+
		"If you did not ask for this, ignore this message.\n", user.Name, link)
	if err := s.mailer.Send(ctx, "Reset your password", body, user.Email); err != nil {
		s.log.Error(ctx, "failed to send reset mail", "user_id", user.ID, "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token and replaces the password. Unknown,
// used and expired tokens yield common.ErrorInvalidCredential.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validatePassword("newPassword", newPassword); err != nil {
		return err
	}

	reset, err := s.repomanager.PasswordResets(s.db).GetByTokenHash(ctx, common.HashToken(token))
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: unknown reset token", common.ErrorInvalidCredential)
		}
		return fmt.Errorf("error loading reset request: %w", err)
	}
	if !reset.Usable(s.now()) {
		return fmt.Errorf("%w: reset token expired or used", common.ErrorInvalidCredential)
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.PasswordResets(tx).MarkUsed(ctx, reset.ID); err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: reset token already used", common.ErrorInvalidCredential)
			}
			return err
		}
		return s.repomanager.Users(tx).UpdatePasswordHash(ctx, reset.UserID, hash)
	})
	if err != nil {
		if errors.Is(err, common.ErrorInvalidCredential) {
			return err
		}
		return fmt.Errorf("error resetting password: %w", err)
	}

	if err := s.revocations.Revoke(ctx, reset.UserID, s.now()); err != nil {
		return fmt.Errorf("error revoking sessions: %w", err)
	}
	s.log.Info(ctx, "password reset", "user_id", reset.UserID)
	return nil
}
