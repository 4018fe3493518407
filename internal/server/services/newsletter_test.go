package services

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNewsletter(t *testing.T) (*NewsletterService, *fakeRepoManager, *fakeMailer) {
	t.Helper()
	repos := newFakeRepoManager()
	mailer := &fakeMailer{}
	return NewNewsletterService(nil, repos, mailer, "https://blog.example", logging.Nop{}), repos, mailer
}

func unsubscribeToken(t *testing.T, body string) string {
	t.Helper()
	i := strings.Index(body, "https://")
	require.GreaterOrEqual(t, i, 0)
	u, err := url.Parse(strings.TrimSpace(body[i:]))
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestSubscribe_IdempotentAndReactivates(t *testing.T) {
	s, _, mailer := newNewsletter(t)
	ctx := context.Background()

	sub, created, err := s.Subscribe(ctx, "Reader@X.com")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, sub.Active)
	assert.Equal(t, "reader@x.com", sub.Email)
	require.Len(t, mailer.sent, 1)
	token := unsubscribeToken(t, mailer.last().body)
	assert.Equal(t, sub.UnsubscribeToken, token)

	again, created, err := s.Subscribe(ctx, "reader@x.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, sub.ID, again.ID)
	assert.Len(t, mailer.sent, 1)

	require.NoError(t, s.Unsubscribe(ctx, "reader@x.com", token))
	active := true
	list, _ := s.List(ctx, &active)
	assert.Empty(t, list)

	back, created, err := s.Subscribe(ctx, "reader@x.com")
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, back.Active)
	assert.Len(t, mailer.sent, 2)

	list, _ = s.List(ctx, nil)
	assert.Len(t, list, 1)
}

func TestSubscribe_MailFailureIsNotSurfaced(t *testing.T) {
	s, _, mailer := newNewsletter(t)
	mailer.err = errBoom

	_, created, err := s.Subscribe(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestSubscribe_InvalidEmail(t *testing.T) {
	s, _, _ := newNewsletter(t)
	_, _, err := s.Subscribe(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestUnsubscribe_Errors(t *testing.T) {
	s, _, _ := newNewsletter(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Unsubscribe(ctx, "a@x.com", "tok"), common.ErrorNotFound)

	_, _, err := s.Subscribe(ctx, "a@x.com")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Unsubscribe(ctx, "a@x.com", "wrong"), common.ErrorValidation)
	assert.ErrorIs(t, s.Unsubscribe(ctx, "a@x.com", ""), common.ErrorValidation)
	assert.ErrorIs(t, s.Unsubscribe(ctx, "bad", "tok"), common.ErrorValidation)
}
