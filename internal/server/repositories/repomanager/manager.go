package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/blogkeeper/internal/dbx"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/comments"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/issues"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/posts"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/subscribers"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/visitors"
)

// RepositoryManager vends repositories bound to a DBTX, so a service can run
// several of them against one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	PasswordResets(db dbx.DBTX) passwordresets.Repository
	Posts(db dbx.DBTX) posts.Repository
	Comments(db dbx.DBTX) comments.Repository
	Issues(db dbx.DBTX) issues.Repository
	Visitors(db dbx.DBTX) visitors.Repository
	Subscribers(db dbx.DBTX) subscribers.Repository
}
