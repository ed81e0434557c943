package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"gator/internal/config"
	importfeeds "gator/internal/import"
	"gator/internal/ingest"
	"gator/internal/process"
	"gator/internal/rss"
	"gator/internal/scheduler"
	"gator/internal/server"
)

func (a *app) newFetcher() *rss.Fetcher {
	return rss.NewFetcher(rss.FetcherConfig{
		RequestTimeout: a.cfg.RequestTimeout,
		Logger:         log.Logger,
	})
}

// agg polls feeds until interrupted, or for one round with -once.
func (a *app) agg(ctx context.Context, args []string) error {
	positional, rest := splitLeadingArgs(args)

	fs, logLevel := a.newFlagSet(CmdAgg)
	fs.IntVar(&a.cfg.WorkerCount, "workers", a.cfg.WorkerCount,
		"Number of concurrent ingestion workers, 0 for CPU count (env: GATOR_WORKER_COUNT)")
	fs.DurationVar(&a.cfg.RequestTimeout, "timeout", a.cfg.RequestTimeout,
		"Per-request fetch timeout (env: GATOR_REQUEST_TIMEOUT)")
	fs.DurationVar(&a.cfg.CycleTimeout, "cycle-timeout", a.cfg.CycleTimeout,
		"Upper bound for one feed's fetch and persist (env: GATOR_CYCLE_TIMEOUT)")
	once := fs.Bool("once", false, "Run a single round on every worker and exit")
	if err := parseFlags(fs, logLevel, rest); err != nil {
		return err
	}
	positional = append(positional, fs.Args()...)
	if err := expectArgs(CmdAgg, positional, 0, 1); err != nil {
		return err
	}
	if len(positional) == 1 {
		interval, err := parseInterval(positional[0])
		if err != nil {
			return err
		}
		a.cfg.Interval = interval
	}

	repo, closeDB, err := a.openRepo(false)
	if err != nil {
		return err
	}
	defer closeDB()

	worker := ingest.NewWorker(a.newFetcher(), repo, log.Logger)
	poller, err := process.NewPoller(scheduler.New(repo), worker, process.Config{
		Concurrency:  a.cfg.WorkerCount,
		Interval:     a.cfg.Interval,
		CycleTimeout: a.cfg.CycleTimeout,
	}, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize poller: %w", err)
	}

	if *once {
		poller.RunOnce(ctx)
		s := poller.Stats()
		fmt.Fprintf(a.out, "Polled %d feeds: %d new posts, %d duplicates, %d skipped, %d failures\n",
			s.Cycles, s.Inserted, s.Duplicates, s.Skipped, s.Failures)
		return nil
	}

	fmt.Fprintf(a.out, "Collecting feeds every %s\n", a.cfg.Interval)
	return poller.Run(ctx)
}

// parseInterval accepts Go durations ("1m30s") and bare integers as minutes,
// the same rule GetEnvDuration applies to GATOR_INTERVAL.
func parseInterval(s string) (time.Duration, error) {
	if minutes, err := strconv.Atoi(s); err == nil {
		if minutes <= 0 {
			return 0, fmt.Errorf("interval must be positive, got %q", s)
		}
		return time.Duration(minutes) * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("interval must be positive, got %q", s)
	}
	return d, nil
}

func (a *app) browse(ctx context.Context, args []string) error {
	fs, logLevel := a.newFlagSet(CmdBrowse)
	if err := parseFlags(fs, logLevel, args); err != nil {
		return err
	}
	if err := expectArgs(CmdBrowse, fs.Args(), 0, 1); err != nil {
		return err
	}
	limit := config.DefaultBrowseLimit
	if fs.NArg() == 1 {
		n, err := strconv.Atoi(fs.Arg(0))
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid limit %q: must be a positive integer", fs.Arg(0))
		}
		limit = n
	}

	repo, closeDB, err := a.openRepo(false)
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := a.currentUser(ctx, repo)
	if err != nil {
		return err
	}
	posts, err := repo.ListPostsForUser(ctx, user.ID, limit)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		fmt.Fprintln(a.out, "No posts yet; run 'gator agg' to collect some")
		return nil
	}

	for _, p := range posts {
		fmt.Fprintf(a.out, "%s  %s\n", p.PublishedAt.Local().Format(time.DateTime), p.Title)
		fmt.Fprintf(a.out, "    %s\n", p.URL)
		if desc := strings.TrimSpace(p.Description.String); desc != "" {
			fmt.Fprintf(a.out, "    %s\n", desc)
		}
	}
	return nil
}

func (a *app) importFeeds(ctx context.Context, args []string) error {
	fs, logLevel := a.newFlagSet(CmdImport)
	fs.StringVar(&a.cfg.FeedsCSVPath, "csv", config.GetEnvString("GATOR_CSV_PATH", a.cfg.FeedsCSVPath),
		"Path or http(s) URL of the feeds CSV file (env: GATOR_CSV_PATH)")
	if err := parseFlags(fs, logLevel, args); err != nil {
		return err
	}
	if err := expectArgs(CmdImport, fs.Args(), 0, 0); err != nil {
		return err
	}

	repo, closeDB, err := a.openRepo(false)
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := a.currentUser(ctx, repo)
	if err != nil {
		return err
	}

	summary, err := importfeeds.NewImporter(repo, a.newFetcher()).ImportFeeds(ctx, a.cfg.FeedsCSVPath, user)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Imported %d rows: %d feeds created, %d followed, %d errors\n",
		summary.Total, summary.Created, summary.Followed, len(summary.Errors))
	for _, e := range summary.Errors {
		fmt.Fprintf(a.out, "  %s\n", e)
	}
	return nil
}

func (a *app) server(ctx context.Context, args []string) error {
	fs, logLevel := a.newFlagSet(CmdServer)
	fs.StringVar(&a.cfg.ServerHost, "host", a.cfg.ServerHost, "Host to bind the server to (env: GATOR_HOST)")
	fs.IntVar(&a.cfg.ServerPort, "port", a.cfg.ServerPort, "Port to listen on (env: GATOR_PORT)")
	fs.StringVar(&a.cfg.APIKey, "api-key", a.cfg.APIKey, "Require this X-API-Key header, empty to disable (env: GATOR_API_KEY)")
	if err := parseFlags(fs, logLevel, args); err != nil {
		return err
	}
	if err := expectArgs(CmdServer, fs.Args(), 0, 0); err != nil {
		return err
	}

	repo, closeDB, err := a.openRepo(true)
	if err != nil {
		return err
	}
	defer closeDB()

	return server.RunServer(ctx, repo, a.cfg.ListenAddr(), log.Logger, a.cfg.APIKey)
}
