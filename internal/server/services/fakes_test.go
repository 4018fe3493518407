package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/dbx"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/comments"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/issues"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/posts"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/subscribers"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/visitors"
	"github.com/google/uuid"
)

var errBoom = errors.New("boom")

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// ---- users ----

type fakeUsersRepo struct {
	mu    sync.Mutex
	byID  map[string]*models.User
	err   error
	calls int
}

func newFakeUsers() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}}
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &c
}

func (f *fakeUsersRepo) add(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	f.byID[u.ID] = copyUser(u)
	return u
}

func (f *fakeUsersRepo) get(id string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		return copyUser(u)
	}
	return nil
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for _, existing := range f.byID {
		if existing.Email == models.NormalizeEmail(u.Email) {
			return nil, common.ErrorConflict
		}
	}
	c := copyUser(u)
	c.ID = uuid.NewString()
	c.Email = models.NormalizeEmail(u.Email)
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.byID[c.ID] = c
	return copyUser(c), nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyUser(u), nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byID {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) List(context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (f *fakeUsersRepo) CountByRole(_ context.Context, role models.Role) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for _, u := range f.byID {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (f *fakeUsersRepo) PromoteAdmin(_ context.Context, id string, hash []byte, name string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.PasswordHash, u.Name, u.Role, u.Disabled = hash, name, models.RoleAdmin, false
	return copyUser(u), nil
}

func (f *fakeUsersRepo) UpdatePasswordHash(_ context.Context, id string, hash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeUsersRepo) ToggleDisabled(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.Disabled = !u.Disabled
	return copyUser(u), nil
}

// ---- password resets ----

type fakeResetsRepo struct {
	mu      sync.Mutex
	byID    map[string]*models.PasswordReset
	markErr error
}

func newFakeResets() *fakeResetsRepo {
	return &fakeResetsRepo{byID: map[string]*models.PasswordReset{}}
}

func (f *fakeResetsRepo) Create(_ context.Context, r *models.PasswordReset) (*models.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *r
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	f.byID[c.ID] = &c
	return &c, nil
}

func (f *fakeResetsRepo) GetByTokenHash(_ context.Context, hash string) (*models.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.byID {
		if r.TokenHash == hash {
			c := *r
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeResetsRepo) MarkUsed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	r, ok := f.byID[id]
	if !ok || r.UsedAt != nil {
		return common.ErrorNotFound
	}
	now := time.Now()
	r.UsedAt = &now
	return nil
}

// ---- posts ----

type fakePostsRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.Post
	filter models.PostFilter
}

func newFakePosts() *fakePostsRepo {
	return &fakePostsRepo{byID: map[string]*models.Post{}}
}

func (f *fakePostsRepo) add(p *models.Post) *models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	c := *p
	f.byID[p.ID] = &c
	return p
}

func (f *fakePostsRepo) Create(_ context.Context, p *models.Post) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *p
	c.ID = uuid.NewString()
	f.byID[c.ID] = &c
	out := c
	return &out, nil
}

func (f *fakePostsRepo) Update(_ context.Context, p *models.Post) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[p.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	c := *p
	f.byID[p.ID] = &c
	out := c
	return &out, nil
}

func (f *fakePostsRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakePostsRepo) GetByID(_ context.Context, id string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakePostsRepo) GetPublishedBySlug(_ context.Context, slug string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.Slug == slug && p.Status == models.PostPublished {
			c := *p
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakePostsRepo) List(_ context.Context, filter models.PostFilter) ([]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	var out []*models.Post
	for _, p := range f.byID {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakePostsRepo) SlugExists(_ context.Context, slug, exceptID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.Slug == slug && p.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePostsRepo) IncrementViews(_ context.Context, slug string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.Slug == slug && p.Status == models.PostPublished {
			p.Views++
			c := *p
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

// ---- comments ----

type fakeCommentsRepo struct {
	mu   sync.Mutex
	byID map[string]*models.Comment
}

func newFakeComments() *fakeCommentsRepo {
	return &fakeCommentsRepo{byID: map[string]*models.Comment{}}
}

func (f *fakeCommentsRepo) Create(_ context.Context, c *models.Comment) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := *c
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	f.byID[n.ID] = &n
	out := n
	return &out, nil
}

func (f *fakeCommentsRepo) GetByID(_ context.Context, id string) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *c
	return &out, nil
}

func (f *fakeCommentsRepo) List(_ context.Context, postID string, status models.CommentStatus) ([]*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Comment
	for _, c := range f.byID {
		if (postID == "" || c.PostID == postID) && (status == "" || c.Status == status) {
			n := *c
			out = append(out, &n)
		}
	}
	return out, nil
}

func (f *fakeCommentsRepo) UpdateModeration(_ context.Context, c *models.Comment) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[c.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	n := *c
	f.byID[c.ID] = &n
	out := n
	return &out, nil
}

// ---- issues ----

type fakeIssuesRepo struct {
	mu   sync.Mutex
	byID map[string]*models.Issue
}

func newFakeIssues() *fakeIssuesRepo {
	return &fakeIssuesRepo{byID: map[string]*models.Issue{}}
}

func (f *fakeIssuesRepo) Create(_ context.Context, i *models.Issue) (*models.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := *i
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	f.byID[n.ID] = &n
	out := n
	return &out, nil
}

func (f *fakeIssuesRepo) GetByID(_ context.Context, id string) (*models.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *i
	return &out, nil
}

func (f *fakeIssuesRepo) List(_ context.Context, status models.IssueStatus) ([]*models.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Issue
	for _, i := range f.byID {
		if status == "" || i.Status == status {
			n := *i
			out = append(out, &n)
		}
	}
	return out, nil
}

func (f *fakeIssuesRepo) UpdateStatus(_ context.Context, i *models.Issue) (*models.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[i.ID]; !ok {
		return nil, common.ErrorNotFound
	}
	n := *i
	f.byID[i.ID] = &n
	out := n
	return &out, nil
}

// ---- visitors ----

type fakeVisitorsRepo struct {
	mu     sync.Mutex
	visits []*models.Visit
	delay  time.Duration
	err    error
	since  time.Time
}

func (f *fakeVisitorsRepo) Insert(_ context.Context, v *models.Visit) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.visits = append(f.visits, v)
	return nil
}

func (f *fakeVisitorsRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visits)
}

func (f *fakeVisitorsRepo) Totals(_ context.Context, since time.Time) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	if f.err != nil {
		return 0, 0, f.err
	}
	seen := map[string]struct{}{}
	for _, v := range f.visits {
		seen[v.IP+"|"+v.CreatedAt.UTC().Format(time.DateOnly)] = struct{}{}
	}
	return int64(len(f.visits)), int64(len(seen)), nil
}

func (f *fakeVisitorsRepo) Daily(context.Context, time.Time) ([]models.DailyVisits, error) {
	return []models.DailyVisits{}, nil
}

func (f *fakeVisitorsRepo) TopPaths(_ context.Context, _ time.Time, limit int) ([]models.PathVisits, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int64{}
	for _, v := range f.visits {
		counts[v.Path]++
	}
	out := make([]models.PathVisits, 0, len(counts))
	for p, n := range counts {
		out = append(out, models.PathVisits{Path: p, Views: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Views > out[j].Views })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- subscribers ----

type fakeSubscribersRepo struct {
	mu   sync.Mutex
	byID map[string]*models.Subscriber
}

func newFakeSubscribers() *fakeSubscribersRepo {
	return &fakeSubscribersRepo{byID: map[string]*models.Subscriber{}}
}

func (f *fakeSubscribersRepo) Create(_ context.Context, s *models.Subscriber) (*models.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := *s
	n.ID = uuid.NewString()
	f.byID[n.ID] = &n
	out := n
	return &out, nil
}

func (f *fakeSubscribersRepo) GetByEmail(_ context.Context, email string) (*models.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byID {
		if s.Email == email {
			out := *s
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeSubscribersRepo) SetActive(_ context.Context, id string, active bool) (*models.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	s.Active = active
	out := *s
	return &out, nil
}

func (f *fakeSubscribersRepo) List(_ context.Context, active *bool) ([]*models.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Subscriber
	for _, s := range f.byID {
		if active == nil || s.Active == *active {
			n := *s
			out = append(out, &n)
		}
	}
	return out, nil
}

// ---- manager ----

type fakeRepoManager struct {
	users       *fakeUsersRepo
	resets      *fakeResetsRepo
	posts       *fakePostsRepo
	comments    *fakeCommentsRepo
	issues      *fakeIssuesRepo
	visitors    *fakeVisitorsRepo
	subscribers *fakeSubscribersRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:       newFakeUsers(),
		resets:      newFakeResets(),
		posts:       newFakePosts(),
		comments:    newFakeComments(),
		issues:      newFakeIssues(),
		visitors:    &fakeVisitorsRepo{},
		subscribers: newFakeSubscribers(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error      { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                   { return m.users }
func (m *fakeRepoManager) PasswordResets(dbx.DBTX) passwordresets.Repository { return m.resets }
func (m *fakeRepoManager) Posts(dbx.DBTX) posts.Repository                   { return m.posts }
func (m *fakeRepoManager) Comments(dbx.DBTX) comments.Repository             { return m.comments }
func (m *fakeRepoManager) Issues(dbx.DBTX) issues.Repository                 { return m.issues }
func (m *fakeRepoManager) Visitors(dbx.DBTX) visitors.Repository             { return m.visitors }
func (m *fakeRepoManager) Subscribers(dbx.DBTX) subscribers.Repository       { return m.subscribers }

// ---- mailer ----

type sentMail struct {
	subject    string
	body       string
	recipients []string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, subject, body string, recipients ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{subject: subject, body: body, recipients: recipients})
	return nil
}

func (f *fakeMailer) last() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}
