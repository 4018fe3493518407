package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	defaultPageSize  = 20
	maxPageSize      = 100
	maxTitleLength   = 200
	maxExcerptLength = 500
	maxContentLength = 200000
	maxCommentLength = 5000
	maxTags          = 10
	maxSlugAttempts  = 20
	autoExcerptRunes = 160
)

type PostInput struct {
	Title      string
	Slug       string
	Excerpt    string
	Content    string
	CoverImage string
	Tags       []string
	Status     models.PostStatus
}

type NewComment struct {
	AuthorName string
	Email      string
	Content    string
}

// ContentService manages posts for admins and serves published posts and
// their comments to readers.
type ContentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
	now         func() time.Time
}

func NewContentService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *ContentService {
	return &ContentService{db: db, repomanager: m, log: log.With("module", "content"), now: time.Now}
}

func (s *ContentService) normalizePost(in PostInput) (PostInput, error) {
	title, err := requireText("title", in.Title, maxTitleLength)
	if err != nil {
		return in, err
	}
	in.Title = title

	if strings.TrimSpace(in.Content) == "" {
		return in, common.NewValidationError("content", "is required")
	}
	if len(in.Content) > maxContentLength {
		return in, common.NewValidationError("content", fmt.Sprintf("must be at most %d bytes", maxContentLength))
	}

	in.Excerpt = strings.TrimSpace(in.Excerpt)
	if in.Excerpt == "" {
		in.Excerpt = excerptOf(in.Content)
	}
	if utf8.RuneCountInString(in.Excerpt) > maxExcerptLength {
		return in, common.NewValidationError("excerpt", fmt.Sprintf("must be at most %d characters", maxExcerptLength))
	}

	if in.Status == "" {
		in.Status = models.PostDraft
	}
	if !in.Status.Valid() {
		return in, common.NewValidationError("status", "unknown post status")
	}

	in.Tags = normalizeTags(in.Tags)
	if len(in.Tags) > maxTags {
		return in, common.NewValidationError("tags", fmt.Sprintf("at most %d tags", maxTags))
	}
	in.CoverImage = strings.TrimSpace(in.CoverImage)
	return in, nil
}

func excerptOf(content string) string {
	text := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(text) <= autoExcerptRunes {
		return text
	}
	r := []rune(text)[:autoExcerptRunes]
	return strings.TrimSpace(string(r)) + "…"
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// resolveSlug returns a free slug. An explicit slug that is taken is a
// conflict; a slug derived from the title gets a numeric suffix instead.
func (s *ContentService) resolveSlug(ctx context.Context, requested, title, exceptID string) (string, error) {
	repo := s.repomanager.Posts(s.db)

	if strings.TrimSpace(requested) != "" {
		slug := slugify(requested)
		if slug == "" {
			return "", common.NewValidationError("slug", "must contain letters or digits")
		}
		taken, err := repo.SlugExists(ctx, slug, exceptID)
		if err != nil {
			return "", fmt.Errorf("error checking slug: %w", err)
		}
		if taken {
			return "", fmt.Errorf("%w: slug %q is taken", common.ErrorConflict, slug)
		}
		return slug, nil
	}

	base := slugify(title)
	if base == "" {
		base = "post"
	}
	for i := 1; i <= maxSlugAttempts; i++ {
		slug := base
		if i > 1 {
			slug = fmt.Sprintf("%s-%d", base, i)
		}
		taken, err := repo.SlugExists(ctx, slug, exceptID)
		if err != nil {
			return "", fmt.Errorf("error checking slug: %w", err)
		}
		if !taken {
			return slug, nil
		}
	}
	return base + "-" + uuid.NewString()[:8], nil
}

func (s *ContentService) CreatePost(ctx context.Context, authorID string, in PostInput) (*models.Post, error) {
	in, err := s.normalizePost(in)
	if err != nil {
		return nil, err
	}
	slug, err := s.resolveSlug(ctx, in.Slug, in.Title, "")
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Slug:       slug,
		Title:      in.Title,
		Excerpt:    in.Excerpt,
		Content:    in.Content,
		CoverImage: in.CoverImage,
		Tags:       in.Tags,
		Status:     in.Status,
		AuthorID:   authorID,
	}
	if post.Status == models.PostPublished {
		now := s.now()
		post.PublishedAt = &now
	}

	created, err := s.repomanager.Posts(s.db).Create(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}
	s.log.Info(ctx, "post created", "post_id", created.ID, "slug", created.Slug, "status", created.Status)
	return created, nil
}

// UpdatePost replaces the editable fields. An empty slug keeps the current
// one. published_at is stamped the first time the post is published and
// kept afterwards.
func (s *ContentService) UpdatePost(ctx context.Context, id string, in PostInput) (*models.Post, error) {
	in, err := s.normalizePost(in)
	if err != nil {
		return nil, err
	}

	repo := s.repomanager.Posts(s.db)

	post, err := repo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading post: %w", err)
	}

	if strings.TrimSpace(in.Slug) != "" && slugify(in.Slug) != post.Slug {
		if post.Slug, err = s.resolveSlug(ctx, in.Slug, in.Title, post.ID); err != nil {
			return nil, err
		}
	}

	post.Title = in.Title
	post.Excerpt = in.Excerpt
	post.Content = in.Content
	post.CoverImage = in.CoverImage
	post.Tags = in.Tags
	post.Status = in.Status
	if post.Status == models.PostPublished && post.PublishedAt == nil {
		now := s.now()
		post.PublishedAt = &now
	}

	updated, err := repo.Update(ctx, post)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error updating post: %w", err)
	}
	s.log.Info(ctx, "post updated", "post_id", updated.ID, "status", updated.Status)
	return updated, nil
}

func (s *ContentService) DeletePost(ctx context.Context, id string) error {
	if err := s.repomanager.Posts(s.db).Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("error deleting post: %w", err)
	}
	s.log.Info(ctx, "post deleted", "post_id", id)
	return nil
}

func (s *ContentService) GetPost(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.repomanager.Posts(s.db).GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading post: %w", err)
	}
	return post, nil
}

func pageBounds(f *models.PostFilter) error {
	if f.Limit < 0 || f.Offset < 0 {
		return common.NewValidationError("limit", "must not be negative")
	}
	if f.Limit == 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return nil
}

// ListPosts lists posts in any status for the admin dashboard.
func (s *ContentService) ListPosts(ctx context.Context, f models.PostFilter) ([]*models.Post, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, common.NewValidationError("status", "unknown post status")
	}
	if err := pageBounds(&f); err != nil {
		return nil, err
	}
	f.Tag = strings.ToLower(strings.TrimSpace(f.Tag))

	list, err := s.repomanager.Posts(s.db).List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return list, nil
}

// ListPublished lists published posts, newest first.
func (s *ContentService) ListPublished(ctx context.Context, f models.PostFilter) ([]*models.Post, error) {
	f.Status = models.PostPublished
	return s.ListPosts(ctx, f)
}

// ReadPublished returns a published post and counts the view.
func (s *ContentService) ReadPublished(ctx context.Context, slug string) (*models.Post, error) {
	post, err := s.repomanager.Posts(s.db).IncrementViews(ctx, slug)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading post: %w", err)
	}
	return post, nil
}

func (s *ContentService) publishedPost(ctx context.Context, slug string) (*models.Post, error) {
	post, err := s.repomanager.Posts(s.db).GetPublishedBySlug(ctx, slug)
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error loading post: %w", err)
	}
	return post, nil
}

func (s *ContentService) ListApprovedComments(ctx context.Context, slug string) ([]*models.Comment, error) {
	post, err := s.publishedPost(ctx, slug)
	if err != nil {
		return nil, err
	}
	list, err := s.repomanager.Comments(s.db).List(ctx, post.ID, models.CommentApproved)
	if err != nil {
		return nil, fmt.Errorf("error listing comments: %w", err)
	}
	for _, c := range list {
		c.Email = nil
		c.ModerationNotes = nil
		c.FlagReason = nil
	}
	return list, nil
}

// SubmitComment stores a reader comment as pending on a published post.
func (s *ContentService) SubmitComment(ctx context.Context, slug string, in NewComment) (*models.Comment, error) {
	name, err := requireText("authorName", in.AuthorName, maxNameLength)
	if err != nil {
		return nil, err
	}
	content, err := requireText("content", in.Content, maxCommentLength)
	if err != nil {
		return nil, err
	}
	var email *string
	if e := models.NormalizeEmail(in.Email); e != "" {
		if err := validateEmail("email", e); err != nil {
			return nil, err
		}
		email = &e
	}

	post, err := s.publishedPost(ctx, slug)
	if err != nil {
		return nil, err
	}

	comment, err := s.repomanager.Comments(s.db).Create(ctx, &models.Comment{
		PostID:     post.ID,
		AuthorName: name,
		Email:      email,
		Content:    content,
		Status:     models.CommentPending,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating comment: %w", err)
	}
	s.log.Info(ctx, "comment submitted", "comment_id", comment.ID, "post_id", post.ID)
	return comment, nil
}
