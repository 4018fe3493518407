package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContent(t *testing.T) (*ContentService, *fakeRepoManager) {
	t.Helper()
	repos := newFakeRepoManager()
	s := NewContentService(nil, repos, logging.Nop{})
	s.now = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	return s, repos
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hello, World!":         "hello-world",
		"  Café  au   lait ":    "cafe-au-lait",
		"Go 1.24 — what's new?": "go-1-24-what-s-new",
		"---":                   "",
		"Ünïcödé Tëxt":          "unicode-text",
		"Привет":                "",
		"already-a-slug":        "already-a-slug",
	}
	for in, want := range tests {
		assert.Equal(t, want, slugify(in), in)
	}
	long := slugify(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, len(long), maxSlugLength)
	assert.False(t, strings.HasSuffix(long, "-"))
}

func TestCreatePost_DerivesSlugAndExcerpt(t *testing.T) {
	s, _ := newContent(t)
	ctx := context.Background()

	p, err := s.CreatePost(ctx, "author-1", PostInput{
		Title:   "Hello World",
		Content: "First paragraph.\n\nSecond one.",
		Tags:    []string{" Go ", "go", "", "Testing"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello-world", p.Slug)
	assert.Equal(t, models.PostDraft, p.Status)
	assert.Nil(t, p.PublishedAt)
	assert.Equal(t, "First paragraph. Second one.", p.Excerpt)
	assert.Equal(t, []string{"go", "testing"}, p.Tags)
	assert.Equal(t, "author-1", p.AuthorID)

	p2, err := s.CreatePost(ctx, "author-1", PostInput{Title: "Hello, world", Content: "x", Status: models.PostPublished})
	require.NoError(t, err)
	assert.Equal(t, "hello-world-2", p2.Slug)
	require.NotNil(t, p2.PublishedAt)
	assert.Equal(t, s.now(), *p2.PublishedAt)
}

func TestCreatePost_ExplicitSlugConflict(t *testing.T) {
	s, repos := newContent(t)
	ctx := context.Background()
	repos.posts.add(&models.Post{Slug: "taken", Status: models.PostDraft})

	_, err := s.CreatePost(ctx, "a", PostInput{Title: "T", Slug: "Taken", Content: "x"})
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestCreatePost_Validation(t *testing.T) {
	s, _ := newContent(t)
	ctx := context.Background()

	for _, in := range []PostInput{
		{Content: "x"},
		{Title: "T"},
		{Title: "T", Content: "x", Status: "secret"},
		{Title: "T", Content: "x", Slug: "!!!"},
		{Title: "T", Content: "x", Tags: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}},
	} {
		_, err := s.CreatePost(ctx, "a", in)
		assert.ErrorIs(t, err, common.ErrorValidation, "%+v", in)
	}
}

func TestUpdatePost_PublishStampsOnce(t *testing.T) {
	s, _ := newContent(t)
	ctx := context.Background()

	p, err := s.CreatePost(ctx, "a", PostInput{Title: "Draft", Content: "x"})
	require.NoError(t, err)

	p, err = s.UpdatePost(ctx, p.ID, PostInput{Title: "Draft", Content: "y", Status: models.PostPublished})
	require.NoError(t, err)
	require.NotNil(t, p.PublishedAt)
	first := *p.PublishedAt
	assert.Equal(t, "draft", p.Slug)

	s.now = func() time.Time { return first.Add(48 * time.Hour) }
	p, err = s.UpdatePost(ctx, p.ID, PostInput{Title: "Renamed", Content: "z", Status: models.PostArchived})
	require.NoError(t, err)
	p, err = s.UpdatePost(ctx, p.ID, PostInput{Title: "Renamed", Content: "z", Status: models.PostPublished, Slug: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, first, *p.PublishedAt)
	assert.Equal(t, "renamed", p.Slug)

	_, err = s.UpdatePost(ctx, "missing", PostInput{Title: "T", Content: "x"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDeleteAndGetPost(t *testing.T) {
	s, repos := newContent(t)
	ctx := context.Background()
	p := repos.posts.add(&models.Post{Slug: "x"})

	got, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Slug)

	require.NoError(t, s.DeletePost(ctx, p.ID))
	assert.ErrorIs(t, s.DeletePost(ctx, p.ID), common.ErrorNotFound)
	_, err = s.GetPost(ctx, p.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListPublished_ForcesStatusAndBounds(t *testing.T) {
	s, repos := newContent(t)
	ctx := context.Background()
	repos.posts.add(&models.Post{Slug: "a", Status: models.PostPublished})
	repos.posts.add(&models.Post{Slug: "b", Status: models.PostDraft})

	list, err := s.ListPublished(ctx, models.PostFilter{Status: models.PostDraft, Tag: " Go ", Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, models.PostPublished, repos.posts.filter.Status)
	assert.Equal(t, maxPageSize, repos.posts.filter.Limit)
	assert.Equal(t, "go", repos.posts.filter.Tag)

	_, err = s.ListPosts(ctx, models.PostFilter{})
	require.NoError(t, err)
	assert.Equal(t, defaultPageSize, repos.posts.filter.Limit)

	_, err = s.ListPosts(ctx, models.PostFilter{Offset: -1})
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestReadPublished_CountsViews(t *testing.T) {
	s, repos := newContent(t)
	ctx := context.Background()
	repos.posts.add(&models.Post{Slug: "live", Status: models.PostPublished})
	repos.posts.add(&models.Post{Slug: "hidden", Status: models.PostDraft})

	p, err := s.ReadPublished(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Views)
	p, _ = s.ReadPublished(ctx, "live")
	assert.Equal(t, int64(2), p.Views)

	_, err = s.ReadPublished(ctx, "hidden")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestComments_SubmitAndListApproved(t *testing.T) {
	s, repos := newContent(t)
	ctx := context.Background()
	post := repos.posts.add(&models.Post{Slug: "live", Status: models.PostPublished})
	repos.posts.add(&models.Post{Slug: "hidden", Status: models.PostDraft})

	c, err := s.SubmitComment(ctx, "live", NewComment{AuthorName: "Bob", Email: "Bob@X.com", Content: "Nice"})
	require.NoError(t, err)
	assert.Equal(t, models.CommentPending, c.Status)
	assert.Equal(t, post.ID, c.PostID)
	assert.Equal(t, "bob@x.com", *c.Email)

	list, err := s.ListApprovedComments(ctx, "live")
	require.NoError(t, err)
	assert.Empty(t, list)

	notes := "ok"
	repos.comments.Create(ctx, &models.Comment{PostID: post.ID, AuthorName: "Eve", Email: &notes, Content: "Hi", Status: models.CommentApproved, ModerationNotes: &notes})
	list, err = s.ListApprovedComments(ctx, "live")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Email)
	assert.Nil(t, list[0].ModerationNotes)

	_, err = s.SubmitComment(ctx, "hidden", NewComment{AuthorName: "Bob", Content: "x"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = s.ListApprovedComments(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = s.SubmitComment(ctx, "live", NewComment{Content: "x"})
	assert.ErrorIs(t, err, common.ErrorValidation)
	_, err = s.SubmitComment(ctx, "live", NewComment{AuthorName: "B", Email: "bad", Content: "x"})
	assert.ErrorIs(t, err, common.ErrorValidation)
}
