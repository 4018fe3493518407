package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/dmitrijs2005/blogkeeper/internal/server/auth"
	"github.com/dmitrijs2005/blogkeeper/internal/server/authz"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/dmitrijs2005/blogkeeper/internal/server/revocation"
	"github.com/dmitrijs2005/blogkeeper/internal/server/services"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// Fakes answer through optional function fields; an unset field returns
// zero values.

type fakeAccounts struct {
	upsertAdmin          func(email, password, name string) (*models.User, bool, error)
	adminExists          func() (bool, error)
	signIn               func(email, password string) (*services.Session, error)
	updatePassword       func(actorID, current, next string) (*services.Session, error)
	toggleUserStatus     func(actorID, targetID string) (*models.User, error)
	listUsers            func() ([]*models.User, error)
	getUser              func(id string) (*models.User, error)
	requestPasswordReset func(email string) error
	resetPassword        func(token, password string) error
}

func (f *fakeAccounts) UpsertAdmin(_ context.Context, email, password, name string) (*models.User, bool, error) {
	if f.upsertAdmin == nil {
		return &models.User{}, false, nil
	}
	return f.upsertAdmin(email, password, name)
}

func (f *fakeAccounts) AdminExists(context.Context) (bool, error) {
	if f.adminExists == nil {
		return true, nil
	}
	return f.adminExists()
}

func (f *fakeAccounts) SignIn(_ context.Context, email, password string) (*services.Session, error) {
	if f.signIn == nil {
		return nil, common.ErrorInvalidCredential
	}
	return f.signIn(email, password)
}

func (f *fakeAccounts) UpdatePassword(_ context.Context, actorID, current, next string) (*services.Session, error) {
	if f.updatePassword == nil {
		return &services.Session{}, nil
	}
	return f.updatePassword(actorID, current, next)
}

func (f *fakeAccounts) ToggleUserStatus(_ context.Context, actorID, targetID string) (*models.User, error) {
	if f.toggleUserStatus == nil {
		return &models.User{ID: targetID}, nil
	}
	return f.toggleUserStatus(actorID, targetID)
}

func (f *fakeAccounts) ListUsers(context.Context) ([]*models.User, error) {
	if f.listUsers == nil {
		return nil, nil
	}
	return f.listUsers()
}

func (f *fakeAccounts) GetUser(_ context.Context, id string) (*models.User, error) {
	if f.getUser == nil {
		return &models.User{ID: id}, nil
	}
	return f.getUser(id)
}

func (f *fakeAccounts) RequestPasswordReset(_ context.Context, email string) error {
	if f.requestPasswordReset == nil {
		return nil
	}
	return f.requestPasswordReset(email)
}

func (f *fakeAccounts) ResetPassword(_ context.Context, token, password string) error {
	if f.resetPassword == nil {
		return nil
	}
	return f.resetPassword(token, password)
}

type fakeVisitors struct {
	mu      sync.Mutex
	visits  []services.VisitInput
	refuse  bool
	summary func(days int) (*models.VisitSummary, error)
}

func (f *fakeVisitors) RecordVisit(_ context.Context, in services.VisitInput) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visits = append(f.visits, in)
	return !f.refuse
}

func (f *fakeVisitors) Summary(_ context.Context, days int) (*models.VisitSummary, error) {
	if f.summary == nil {
		return &models.VisitSummary{Days: days}, nil
	}
	return f.summary(days)
}

type fakeContent struct {
	createPost    func(authorID string, in services.PostInput) (*models.Post, error)
	updatePost    func(id string, in services.PostInput) (*models.Post, error)
	deletePost    func(id string) error
	listPosts     func(f models.PostFilter) ([]*models.Post, error)
	listPublished func(f models.PostFilter) ([]*models.Post, error)
	readPublished func(slug string) (*models.Post, error)
	listComments  func(slug string) ([]*models.Comment, error)
	submitComment func(slug string, in services.NewComment) (*models.Comment, error)
}

func (f *fakeContent) CreatePost(_ context.Context, authorID string, in services.PostInput) (*models.Post, error) {
	if f.createPost == nil {
		return &models.Post{}, nil
	}
	return f.createPost(authorID, in)
}

func (f *fakeContent) UpdatePost(_ context.Context, id string, in services.PostInput) (*models.Post, error) {
	if f.updatePost == nil {
		return &models.Post{ID: id}, nil
	}
	return f.updatePost(id, in)
}

func (f *fakeContent) DeletePost(_ context.Context, id string) error {
	if f.deletePost == nil {
		return nil
	}
	return f.deletePost(id)
}

func (f *fakeContent) ListPosts(_ context.Context, filter models.PostFilter) ([]*models.Post, error) {
	if f.listPosts == nil {
		return nil, nil
	}
	return f.listPosts(filter)
}

func (f *fakeContent) ListPublished(_ context.Context, filter models.PostFilter) ([]*models.Post, error) {
	if f.listPublished == nil {
		return nil, nil
	}
	return f.listPublished(filter)
}

func (f *fakeContent) ReadPublished(_ context.Context, slug string) (*models.Post, error) {
	if f.readPublished == nil {
		return nil, common.ErrorNotFound
	}
	return f.readPublished(slug)
}

func (f *fakeContent) ListApprovedComments(_ context.Context, slug string) ([]*models.Comment, error) {
	if f.listComments == nil {
		return nil, nil
	}
	return f.listComments(slug)
}

func (f *fakeContent) SubmitComment(_ context.Context, slug string, in services.NewComment) (*models.Comment, error) {
	if f.submitComment == nil {
		return &models.Comment{}, nil
	}
	return f.submitComment(slug, in)
}

type fakeModeration struct {
	listComments  func(status models.CommentStatus) ([]*models.Comment, error)
	updateComment func(actorID, id string, upd services.CommentModeration) (*models.Comment, error)
	listIssues    func(status models.IssueStatus) ([]*models.Issue, error)
	updateIssue   func(actorID, id string, upd services.IssueUpdate) (*models.Issue, error)
	createIssue   func(in services.NewIssue) (*models.Issue, error)
}

func (f *fakeModeration) ListComments(_ context.Context, status models.CommentStatus) ([]*models.Comment, error) {
	if f.listComments == nil {
		return nil, nil
	}
	return f.listComments(status)
}

func (f *fakeModeration) UpdateCommentStatus(_ context.Context, actorID, id string, upd services.CommentModeration) (*models.Comment, error) {
	if f.updateComment == nil {
		return &models.Comment{ID: id}, nil
	}
	return f.updateComment(actorID, id, upd)
}

func (f *fakeModeration) ListIssues(_ context.Context, status models.IssueStatus) ([]*models.Issue, error) {
	if f.listIssues == nil {
		return nil, nil
	}
	return f.listIssues(status)
}

func (f *fakeModeration) UpdateIssueStatus(_ context.Context, actorID, id string, upd services.IssueUpdate) (*models.Issue, error) {
	if f.updateIssue == nil {
		return &models.Issue{ID: id}, nil
	}
	return f.updateIssue(actorID, id, upd)
}

func (f *fakeModeration) CreateIssue(_ context.Context, in services.NewIssue) (*models.Issue, error) {
	if f.createIssue == nil {
		return &models.Issue{}, nil
	}
	return f.createIssue(in)
}

type fakeNewsletter struct {
	subscribe   func(email string) (*models.Subscriber, bool, error)
	unsubscribe func(email, token string) error
	list        func(active *bool) ([]*models.Subscriber, error)
}

func (f *fakeNewsletter) Subscribe(_ context.Context, email string) (*models.Subscriber, bool, error) {
	if f.subscribe == nil {
		return &models.Subscriber{Email: email, Active: true}, true, nil
	}
	return f.subscribe(email)
}

func (f *fakeNewsletter) Unsubscribe(_ context.Context, email, token string) error {
	if f.unsubscribe == nil {
		return nil
	}
	return f.unsubscribe(email, token)
}

func (f *fakeNewsletter) List(_ context.Context, active *bool) ([]*models.Subscriber, error) {
	if f.list == nil {
		return nil, nil
	}
	return f.list(active)
}

type fakeAssistant struct {
	generate func(actorID, prompt string) (string, error)
	upload   func(actorID, name, contentType string, data []byte) (string, error)
	presign  func(actorID, name string) (string, string, error)
}

func (f *fakeAssistant) Generate(_ context.Context, actorID, prompt string) (string, error) {
	if f.generate == nil {
		return "", nil
	}
	return f.generate(actorID, prompt)
}

func (f *fakeAssistant) UploadMedia(_ context.Context, actorID, name, contentType string, data []byte) (string, error) {
	if f.upload == nil {
		return "", nil
	}
	return f.upload(actorID, name, contentType, data)
}

func (f *fakeAssistant) PresignMedia(_ context.Context, actorID, name string) (string, string, error) {
	if f.presign == nil {
		return "", "", nil
	}
	return f.presign(actorID, name)
}

type fakePinger struct{ err error }

func (f *fakePinger) PingContext(context.Context) error { return f.err }

type fakeUserFinder struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (f *fakeUserFinder) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type observation struct {
	route  string
	method string
	status int
}

type recordingMetrics struct {
	mu  sync.Mutex
	obs []observation
}

func (m *recordingMetrics) ObserveHTTP(route, method string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obs = append(m.obs, observation{route: route, method: method, status: status})
}

type harness struct {
	srv        *Server
	accounts   *fakeAccounts
	visitors   *fakeVisitors
	content    *fakeContent
	moderation *fakeModeration
	newsletter *fakeNewsletter
	assistant  *fakeAssistant
	db         *fakePinger
	metrics    *recordingMetrics
	tokens     *auth.TokenManager
	users      *fakeUserFinder
	revs       *revocation.MemoryStore
}

func newHarness(t *testing.T, opts ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		accounts:   &fakeAccounts{},
		visitors:   &fakeVisitors{},
		content:    &fakeContent{},
		moderation: &fakeModeration{},
		newsletter: &fakeNewsletter{},
		assistant:  &fakeAssistant{},
		db:         &fakePinger{},
		metrics:    &recordingMetrics{},
		tokens:     auth.NewTokenManager(testSecret, "blogkeeper", time.Hour),
		users: &fakeUserFinder{users: map[string]*models.User{
			"admin-1":  {ID: "admin-1", Email: "a@x.com", Role: models.RoleAdmin},
			"reader-1": {ID: "reader-1", Email: "r@x.com", Role: models.RoleReader},
		}},
		revs: revocation.NewMemoryStore(),
	}
	o := Options{Addr: "127.0.0.1:0", Cookie: auth.CookieOptions{MaxAge: time.Hour}}
	for _, fn := range opts {
		fn(&o)
	}
	h.srv = NewServer(o, Deps{
		Accounts:       h.accounts,
		Visitors:       h.visitors,
		Content:        h.content,
		Moderation:     h.moderation,
		Newsletter:     h.newsletter,
		Assistant:      h.assistant,
		Gate:           authz.NewGate(h.tokens, h.users, h.revs, logging.Nop{}),
		DB:             h.db,
		Metrics:        h.metrics,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "# metrics\n") }),
	}, logging.Nop{})
	return h
}

func (h *harness) cookie(t *testing.T, userID string) *http.Cookie {
	t.Helper()
	u := h.users.users[userID]
	tok, _, err := h.tokens.Issue(u.ID, u.Email, u.Role)
	require.NoError(t, err)
	return &http.Cookie{Name: common.SessionCookieName, Value: tok}
}

// do sends body as-is when it is a string, otherwise as JSON.
func (h *harness) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return h.serve(req)
}

func (h *harness) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeResponse[ErrorResponse](t, rec).Error.Code
}
