package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnums(t *testing.T) {
	assert.True(t, RoleSubAdmin.Valid())
	assert.False(t, Role("root").Valid())

	assert.True(t, CommentFlagged.Valid())
	assert.False(t, CommentStatus("spam").Valid())

	assert.True(t, IssueClosed.Valid())
	assert.False(t, IssueStatus("open").Valid())
	assert.True(t, IssueResolved.Terminal())
	assert.False(t, IssuePending.Terminal())

	assert.True(t, PostArchived.Valid())
	assert.False(t, PostStatus("").Valid())
}

func TestUser_JSONOmitsPasswordHash(t *testing.T) {
	u := User{ID: "u1", Email: "a@x.com", PasswordHash: []byte("$2a$12$hash"), Role: RoleAdmin}

	b, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "hash")
	assert.NotContains(t, string(b), "password")
	assert.True(t, u.HasPassword())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com "))
}

func TestPasswordReset_Usable(t *testing.T) {
	now := time.Now()
	p := PasswordReset{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, p.Usable(now))
	assert.False(t, p.Usable(now.Add(2*time.Hour)))

	p.UsedAt = &now
	assert.False(t, p.Usable(now))
}
