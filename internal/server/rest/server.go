// Package rest exposes the blog over JSON/HTTP: public reading, comments,
// issue reports and newsletter endpoints, plus the cookie-authenticated
// admin API.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/dmitrijs2005/blogkeeper/internal/ratelimit"
	"github.com/dmitrijs2005/blogkeeper/internal/server/auth"
	"github.com/dmitrijs2005/blogkeeper/internal/server/authz"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/dmitrijs2005/blogkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	pruneInterval     = time.Minute

	signInAttempts = 5
	signInRefill   = 30 * time.Second
)

type Accounts interface {
	UpsertAdmin(ctx context.Context, email, password, name string) (*models.User, bool, error)
	AdminExists(ctx context.Context) (bool, error)
	SignIn(ctx context.Context, email, password string) (*services.Session, error)
	UpdatePassword(ctx context.Context, actorID, currentPassword, newPassword string) (*services.Session, error)
	ToggleUserStatus(ctx context.Context, actorID, targetID string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type Visitors interface {
	RecordVisit(ctx context.Context, in services.VisitInput) bool
	Summary(ctx context.Context, days int) (*models.VisitSummary, error)
}

type Content interface {
	CreatePost(ctx context.Context, authorID string, in services.PostInput) (*models.Post, error)
	UpdatePost(ctx context.Context, id string, in services.PostInput) (*models.Post, error)
	DeletePost(ctx context.Context, id string) error
	ListPosts(ctx context.Context, f models.PostFilter) ([]*models.Post, error)
	ListPublished(ctx context.Context, f models.PostFilter) ([]*models.Post, error)
	ReadPublished(ctx context.Context, slug string) (*models.Post, error)
	ListApprovedComments(ctx context.Context, slug string) ([]*models.Comment, error)
	SubmitComment(ctx context.Context, slug string, in services.NewComment) (*models.Comment, error)
}

type Moderation interface {
	ListComments(ctx context.Context, status models.CommentStatus) ([]*models.Comment, error)
	UpdateCommentStatus(ctx context.Context, actorID, id string, upd services.CommentModeration) (*models.Comment, error)
	ListIssues(ctx context.Context, status models.IssueStatus) ([]*models.Issue, error)
	UpdateIssueStatus(ctx context.Context, actorID, id string, upd services.IssueUpdate) (*models.Issue, error)
	CreateIssue(ctx context.Context, in services.NewIssue) (*models.Issue, error)
}

type Newsletter interface {
	Subscribe(ctx context.Context, email string) (*models.Subscriber, bool, error)
	Unsubscribe(ctx context.Context, email, token string) error
	List(ctx context.Context, active *bool) ([]*models.Subscriber, error)
}

type Assistant interface {
	Generate(ctx context.Context, actorID, prompt string) (string, error)
	UploadMedia(ctx context.Context, actorID, name, contentType string, data []byte) (string, error)
	PresignMedia(ctx context.Context, actorID, name string) (string, string, error)
}

// Pinger reports database liveness for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// AdminDefaults fill in /admin/init fields the request leaves empty.
type AdminDefaults struct {
	Email    string
	Password string
	Name     string
}

type Options struct {
	Addr       string
	Cookie     auth.CookieOptions
	TrustProxy bool
	Admin      AdminDefaults
}

type Deps struct {
	Accounts       Accounts
	Visitors       Visitors
	Content        Content
	Moderation     Moderation
	Newsletter     Newsletter
	Assistant      Assistant
	Gate           *authz.Gate
	DB             Pinger
	Metrics        HTTPMetrics
	MetricsHandler http.Handler
}

type Server struct {
	opts    Options
	deps    Deps
	log     logging.Logger
	errs    errorResponder
	signIns *ratelimit.TokenBucket
	router  chi.Router
}

func NewServer(opts Options, deps Deps, log logging.Logger) *Server {
	if deps.Metrics == nil {
		deps.Metrics = nopHTTPMetrics{}
	}
	if deps.MetricsHandler == nil {
		deps.MetricsHandler = http.NotFoundHandler()
	}
	l := log.With("module", "rest_server")
	s := &Server{
		opts:    opts,
		deps:    deps,
		log:     l,
		errs:    errorResponder{log: l},
		signIns: ratelimit.NewTokenBucket(signInAttempts, signInRefill),
	}
	s.router = s.routes()
	return s
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	requireAdmin := s.deps.Gate.RequireRole(models.RoleAdmin, s.errs.write)

	r.Use(middleware.RequestID)
	if s.opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(s.log))
	r.Use(observeMetrics(s.deps.Metrics))
	r.Use(recoverer(s.errs))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.errs.write(w, r, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: ErrorDetail{
			Code:    "METHOD_NOT_ALLOWED",
			Message: "method not allowed",
		}})
	})

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", s.deps.MetricsHandler)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signin", s.signIn)
		r.Post("/logout", s.logout)
		r.Post("/password-reset", s.requestPasswordReset)
		r.Post("/password-reset/confirm", s.confirmPasswordReset)
		r.With(requireAdmin).Get("/session", s.session)
	})

	r.Post("/visitors", s.recordVisit)
	r.Post("/issues", s.createIssue)
	r.Post("/newsletter/subscribe", s.subscribe)
	r.Post("/newsletter/unsubscribe", s.unsubscribe)

	r.Route("/posts", func(r chi.Router) {
		r.Get("/", s.listPublished)
		r.Get("/{slug}", s.readPost)
		r.Get("/{slug}/comments", s.listComments)
		r.Post("/{slug}/comments", s.submitComment)
	})

	r.With(requireAdmin).Patch("/comments/{id}", s.moderateComment)
	r.With(requireAdmin).Patch("/issues/{id}", s.updateIssue)

	r.Route("/admin", func(r chi.Router) {
		// Public until the first admin exists; the handler checks.
		r.Post("/init", s.initAdmin)

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)

			r.Post("/update-password", s.updatePassword)
			r.Get("/users", s.listUsers)
			r.Get("/users/{id}", s.getUser)
			r.Patch("/users/{id}/toggle-status", s.toggleUserStatus)

			r.Get("/analytics/visitors", s.visitorSummary)

			r.Get("/posts", s.adminListPosts)
			r.Post("/posts", s.createPost)
			r.Put("/posts/{id}", s.updatePost)
			r.Delete("/posts/{id}", s.deletePost)

			r.Get("/comments", s.adminListComments)
			r.Get("/issues", s.adminListIssues)
			r.Get("/subscribers", s.listSubscribers)

			r.Post("/ai/generate", s.generate)
			r.Post("/media", s.uploadMedia)
			r.Post("/media/presign", s.presignMedia)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go s.pruneSignIns(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "Starting REST server", "address", s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info(ctx, "Stopping REST server...")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) pruneSignIns(ctx context.Context) {
	t := time.NewTicker(pruneInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.signIns.Prune()
		}
	}
}
