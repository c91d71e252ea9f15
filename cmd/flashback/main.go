package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/conorfennell/flashback/internal/config"
	"github.com/conorfennell/flashback/internal/importer"
	"github.com/conorfennell/flashback/internal/storage"
	"github.com/conorfennell/flashback/internal/study"
	"github.com/conorfennell/flashback/internal/web"
	"github.com/spf13/pflag"
)

const usage = `Usage: flashback [flags] <command> [args]

Commands:
  serve                    Start the study server
  import <dir|git-url>     Import markdown decks from a directory or git repository
  due                      List the questions due today in active categories
  activate <category>      Include a category in study sessions
  deactivate <category>    Exclude a category from study sessions

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "flashback: %v\n", err)
		os.Exit(1)
	}
}

// app is everything a command needs, built once from the configuration.
type app struct {
	cfg      *config.Config
	db       *storage.DB
	svc      *study.Service
	importer *importer.Importer
	logger   *slog.Logger
	out      io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := config.NewFlagSet("flashback")
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	cfg, rest, err := config.Load(fs, args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("no command given")
	}

	logger := cfg.Log.Logger(stderr)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	db, err := storage.Open(cfg.DB.Driver, cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	logger.Debug("database opened", "driver", cfg.DB.Driver, "path", cfg.DB.Path)

	params := cfg.Scheduler
	svc, err := study.NewService(db, study.Options{
		Params:   &params,
		Location: loc,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		svc:      svc,
		importer: importer.New(db, svc, logger),
		logger:   logger,
		out:      stdout,
	}

	command, cmdArgs := rest[0], rest[1:]
	switch command {
	case "serve":
		return a.serve(ctx)
	case "import":
		if len(cmdArgs) != 1 {
			return errors.New("usage: flashback import <dir|git-url>")
		}
		return a.importDecks(ctx, cmdArgs[0])
	case "due":
		return a.listDue(ctx)
	case "activate", "deactivate":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("usage: flashback %s <category>", command)
		}
		return a.setActive(ctx, cmdArgs[0], command == "activate")
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) serve(ctx context.Context) error {
	handler, err := web.NewServer(a.svc, a.logger)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("study server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down study server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *app) importDecks(ctx context.Context, source string) error {
	var (
		res importer.Result
		err error
	)
	if importer.IsGitURL(source) {
		res, err = a.importer.ImportGit(ctx, source, a.cfg.Import.CacheDir)
	} else {
		res, err = a.importer.ImportDir(ctx, source)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Found %d cards: %d new, %d already known, %d errors.\n",
		res.Parsed, res.Inserted, res.Skipped, len(res.Errors))
	if len(res.Errors) > 0 {
		fmt.Fprintln(a.out, "\nErrors:")
		for _, e := range res.Errors {
			fmt.Fprintf(a.out, "- %s\n", e)
		}
	}
	return nil
}

func (a *app) listDue(ctx context.Context) error {
	qs, err := a.svc.ActiveDueToday(ctx)
	if err != nil {
		return err
	}
	if len(qs) == 0 {
		forecast, err := a.svc.Forecast(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Nothing due today. Last question due on %s.\n", forecast.Format("2006-01-02"))
		return nil
	}

	fmt.Fprintf(a.out, "%d questions due today:\n", len(qs))
	for _, q := range qs {
		fmt.Fprintf(a.out, "  [%s] %s\n", q.Category.Name, q.Title)
	}
	return nil
}

func (a *app) setActive(ctx context.Context, name string, active bool) error {
	c, err := a.db.FindCategoryByName(ctx, name)
	if err != nil {
		return fmt.Errorf("category %q: %w", name, err)
	}
	if err := a.db.SetCategoryActive(ctx, c.ID, active); err != nil {
		return err
	}
	a.logger.Info("category updated", "name", name, "active", active)
	return nil
}
