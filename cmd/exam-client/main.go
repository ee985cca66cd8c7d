package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-client/internal/client"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/database"
	"github.com/stemsi/exstem-client/internal/exam"
	"github.com/stemsi/exstem-client/internal/logger"
	"github.com/stemsi/exstem-client/internal/session"
)

const usage = `Usage: exam-client <command> [args]

Commands:
  login [student|teacher|admin] <email>   sign in (password is prompted)
  logout                                  sign out
  whoami                                  show the signed-in user
  exams [upcoming|ongoing|past]           list your exams (default ongoing)
  instructions <examId>                   show an exam's instructions
  take <examId>                           start or resume an exam
  results                                 list your graded exams
  result <examId>                         review one graded exam
`

// app carries what every command needs.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	store *session.Store
	api   *client.Client
	in    *bufio.Reader
	out   io.Writer
}

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Session Storage ───────────────────────────────────────────────
	storage, closeStorage, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session storage")
	}
	defer closeStorage()

	store := session.NewStore(storage, log)
	if err := store.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to restore session")
	}

	a := &app{
		cfg:   cfg,
		log:   log,
		store: store,
		api:   client.New(cfg, store, log),
		in:    bufio.NewReader(os.Stdin),
		out:   os.Stdout,
	}

	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		closeStorage()
		os.Exit(1)
	}
}

// openStorage picks Redis or a file for the session, per SESSION_STORE.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (session.Storage, func(), error) {
	if !cfg.UsesRedisSession() {
		return session.NewFileStorage(cfg.SessionStore), func() {}, nil
	}
	rdb, err := database.NewRedisClient(ctx, cfg.SessionStore, log)
	if err != nil {
		return nil, nil, err
	}
	key := config.CacheKey.IdentityKey(cfg.SessionProfile)
	return session.NewRedisStorage(rdb, key), func() { rdb.Close() }, nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami()
	case "exams":
		return a.exams(ctx, args)
	case "instructions":
		return a.instructions(ctx, args)
	case "take":
		return a.take(ctx, args)
	case "results":
		return a.results(ctx)
	case "result":
		return a.result(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	}
	return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
}

func describe(err error) string {
	switch {
	case errors.Is(err, client.ErrAuthRequired):
		return "you are not signed in or your session has expired. Run: exam-client login <email>"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	}
	var ae *exam.ActionError
	if errors.As(err, &ae) {
		return exam.UserMessage(err)
	}
	return err.Error()
}
