// Package cli implements blogctl, the operator command line: it applies
// database migrations and bootstraps admin accounts without going through
// the HTTP API.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/blogkeeper/internal/flagx"
	"github.com/dmitrijs2005/blogkeeper/internal/logging"
	"github.com/dmitrijs2005/blogkeeper/internal/server/auth"
	"github.com/dmitrijs2005/blogkeeper/internal/server/config"
	"github.com/dmitrijs2005/blogkeeper/internal/server/mail"
	"github.com/dmitrijs2005/blogkeeper/internal/server/models"
	"github.com/dmitrijs2005/blogkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/blogkeeper/internal/server/revocation"
	"github.com/dmitrijs2005/blogkeeper/internal/server/services"
)

const usage = `Usage: blogctl <command> [flags]

Commands:
  migrate                            apply database migrations
  init-admin [-email E] [-name N]    create or promote an admin account
  help                               show this message

Configuration is read like the server's: -c/-config file, .env, BLOG_* variables, -d DSN.
`

// ErrUsage is returned after the usage text has been printed.
var ErrUsage = errors.New("invalid usage")

type adminUpserter interface {
	UpsertAdmin(ctx context.Context, email, password, name string) (*models.User, bool, error)
}

// Seams for tests.
var (
	openDB         = repomanager.OpenDB
	newRepoManager = repomanager.NewPostgresRepositoryManager
	newUpserter    = func(db *sql.DB, rm repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) (adminUpserter, error) {
		// No tokens are issued here, so any key will do.
		secret, err := auth.RandomSecret()
		if err != nil {
			return nil, err
		}
		mailer, err := mail.New("", cfg.MailFrom, log)
		if err != nil {
			return nil, err
		}
		return services.NewAccountService(db, rm, auth.NewHasher(cfg.BcryptCost),
			auth.NewTokenManager(secret, cfg.TokenIssuer, cfg.TokenValidity),
			revocation.NewMemoryStore(), mailer, cfg.SiteURL, log), nil
	}
)

type App struct {
	in  *bufio.Reader
	out io.Writer
	log logging.Logger
}

func NewApp(in io.Reader, out io.Writer, log logging.Logger) *App {
	return &App{in: bufio.NewReader(in), out: out, log: log.With("module", "blogctl")}
}

// Run executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	case "migrate":
		return a.migrate(ctx, rest)
	case "init-admin":
		return a.initAdmin(ctx, rest)
	default:
		fmt.Fprintf(a.out, "Unknown command: %s\n\n%s", cmd, usage)
		return ErrUsage
	}
}

// connect loads the configuration, opens the database and migrates it.
func (a *App) connect(ctx context.Context, args []string) (*config.Config, *sql.DB, repomanager.RepositoryManager, error) {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := openDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	rm := newRepoManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return cfg, db, rm, nil
}

func (a *App) migrate(ctx context.Context, args []string) error {
	_, db, _, err := a.connect(ctx, args)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Fprintln(a.out, "Migrations applied.")
	return nil
}

func (a *App) initAdmin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init-admin", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "admin email (defaults to BLOG_ADMIN_EMAIL)")
	name := fs.String("name", "", "display name (defaults to BLOG_ADMIN_NAME)")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-email", "--email", "-name", "--name"})); err != nil {
		return ErrUsage
	}

	cfg, db, rm, err := a.connect(ctx, args)
	if err != nil {
		return err
	}
	defer db.Close()

	if *email == "" {
		*email = cfg.AdminEmail
	}
	if *email == "" {
		if *email, err = GetSimpleText(a.in, "Admin email", a.out); err != nil {
			return err
		}
	}
	if *name == "" {
		*name = cfg.AdminName
	}

	password := cfg.AdminPassword
	if password == "" {
		if password, err = GetNewPassword(a.out); err != nil {
			return err
		}
	}

	accounts, err := newUpserter(db, rm, cfg, a.log)
	if err != nil {
		return err
	}
	user, created, err := accounts.UpsertAdmin(ctx, *email, password, *name)
	if err != nil {
		return err
	}

	verb := "updated"
	if created {
		verb = "created"
	}
	fmt.Fprintf(a.out, "Admin %s %s (id %s).\n", user.Email, verb, user.ID)
	return nil
}
