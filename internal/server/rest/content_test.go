package rest

import (
	"net/http"
	"testing"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/dmitrijs2005/blogkeeper/internal/server/services"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListPublished_QueryParams(t *testing.T) {
	h := newHarness(t)
	var got models.PostFilter
	h.content.listPublished = func(f models.PostFilter) ([]*models.Post, error) {
		got = f
		return []*models.Post{{Slug: "one"}}, nil
	}

	rec := h.do(t, http.MethodGet, "/posts?tag=go&limit=5&offset=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.PostFilter{Tag: "go", Limit: 5, Offset: 10}, got)
	assert.Len(t, decodeResponse[[]models.Post](t, rec), 1)

	rec = h.do(t, http.MethodGet, "/posts?limit=many", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadPost(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/posts/missing", nil).Code)

	h.content.readPublished = func(slug string) (*models.Post, error) {
		return &models.Post{Slug: slug, Views: 3}, nil
	}
	rec := h.do(t, http.MethodGet, "/posts/hello", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), decodeResponse[models.Post](t, rec).Views)
}

func TestComments_Public(t *testing.T) {
	h := newHarness(t)
	h.content.listComments = func(slug string) ([]*models.Comment, error) {
		assert.Equal(t, "hello", slug)
		return nil, nil
	}
	var submitted services.NewComment
	h.content.submitComment = func(slug string, in services.NewComment) (*models.Comment, error) {
		submitted = in
		return &models.Comment{ID: "c1", Status: models.CommentPending}, nil
	}

	rec := h.do(t, http.MethodGet, "/posts/hello/comments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = h.do(t, http.MethodPost, "/posts/hello/comments", commentRequest{AuthorName: "Ann", Content: "Nice"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, services.NewComment{AuthorName: "Ann", Content: "Nice"}, submitted)

	rec = h.do(t, http.MethodPost, "/posts/hello/comments", commentRequest{AuthorName: "Ann", Email: "nope", Content: "Nice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.content.submitComment = func(string, services.NewComment) (*models.Comment, error) {
		return nil, common.ErrorNotFound
	}
	rec = h.do(t, http.MethodPost, "/posts/missing/comments", commentRequest{AuthorName: "Ann", Content: "Nice"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminPosts_CRUD(t *testing.T) {
	h := newHarness(t)
	admin := h.cookie(t, "admin-1")

	var author string
	var input services.PostInput
	h.content.createPost = func(authorID string, in services.PostInput) (*models.Post, error) {
		author, input = authorID, in
		return &models.Post{ID: "p1", Title: in.Title}, nil
	}
	req := postRequest{Title: "Hello", Content: "Body", Tags: []string{"go"}, Status: "published"}

	rec := h.do(t, http.MethodPost, "/admin/posts", req, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "admin-1", author)
	want := services.PostInput{Title: "Hello", Content: "Body", Tags: []string{"go"}, Status: models.PostPublished}
	if diff := cmp.Diff(want, input); diff != "" {
		t.Errorf("post input mismatch (-want +got):\n%s", diff)
	}

	h.content.updatePost = func(id string, _ services.PostInput) (*models.Post, error) {
		assert.Equal(t, "p1", id)
		return nil, common.ErrorConflict
	}
	rec = h.do(t, http.MethodPut, "/admin/posts/p1", req, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	deleted := ""
	h.content.deletePost = func(id string) error {
		deleted = id
		return nil
	}
	rec = h.do(t, http.MethodDelete, "/admin/posts/p1", nil, admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "p1", deleted)

	rec = h.do(t, http.MethodGet, "/admin/posts?status=draft", nil, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminPosts_Validation(t *testing.T) {
	h := newHarness(t)
	admin := h.cookie(t, "admin-1")

	rec := h.do(t, http.MethodPost, "/admin/posts", postRequest{Title: "Hello", Content: "Body", Status: "live"}, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeResponse[ErrorResponse](t, rec)
	require.Len(t, body.Error.Details, 1)
	assert.Equal(t, "status", body.Error.Details[0].Field)

	rec = h.do(t, http.MethodPost, "/admin/posts", postRequest{Content: "Body"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/admin/posts", postRequest{Title: "Hello", Content: "Body"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
