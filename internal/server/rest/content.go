package rest

import (
	"net/http"

	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/dmitrijs2005/blogkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type postRequest struct {
	Title      string   `json:"title" validate:"required"`
	Slug       string   `json:"slug"`
	Excerpt    string   `json:"excerpt"`
	Content    string   `json:"content" validate:"required"`
	CoverImage string   `json:"coverImage" validate:"omitempty,url"`
	Tags       []string `json:"tags" validate:"max=10,dive,required"`
	Status     string   `json:"status" validate:"omitempty,oneof=draft published archived"`
}

func (p postRequest) input() services.PostInput {
	return services.PostInput{
		Title:      p.Title,
		Slug:       p.Slug,
		Excerpt:    p.Excerpt,
		Content:    p.Content,
		CoverImage: p.CoverImage,
		Tags:       p.Tags,
		Status:     models.PostStatus(p.Status),
	}
}

type commentRequest struct {
	AuthorName string `json:"authorName" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Content    string `json:"content" validate:"required"`
}

// postFilter reads tag, limit and offset from the query string.
func postFilter(r *http.Request) (models.PostFilter, error) {
	f := models.PostFilter{
		Status: models.PostStatus(r.URL.Query().Get("status")),
		Tag:    r.URL.Query().Get("tag"),
	}
	var err error
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func (s *Server) listPublished(w http.ResponseWriter, r *http.Request) {
	f, err := postFilter(r)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	posts, err := s.deps.Content.ListPublished(r.Context(), f)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(posts))
}

func (s *Server) readPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.deps.Content.ReadPublished(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.deps.Content.ListApprovedComments(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(comments))
}

func (s *Server) submitComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}
	comment, err := s.deps.Content.SubmitComment(r.Context(), chi.URLParam(r, "slug"), services.NewComment{
		AuthorName: req.AuthorName,
		Email:      req.Email,
		Content:    req.Content,
	})
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) adminListPosts(w http.ResponseWriter, r *http.Request) {
	f, err := postFilter(r)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	posts, err := s.deps.Content.ListPosts(r.Context(), f)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(posts))
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}
	post, err := s.deps.Content.CreatePost(r.Context(), claims.UserID, req.input())
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}
	post, err := s.deps.Content.UpdatePost(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Content.DeletePost(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.errs.write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
