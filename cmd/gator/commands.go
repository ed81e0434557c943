package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"gator/internal/config"
	"gator/internal/database"
	"gator/internal/models"
	"gator/internal/storage"
)

// Command identifies a CLI subcommand.
type Command int

const (
	CmdRegister Command = iota
	CmdLogin
	CmdUsers
	CmdReset
	CmdAddFeed
	CmdFeeds
	CmdFollow
	CmdFollowing
	CmdUnfollow
	CmdAgg
	CmdBrowse
	CmdImport
	CmdServer
	CmdHelp
)

var commandNames = map[Command]string{
	CmdRegister:  "register",
	CmdLogin:     "login",
	CmdUsers:     "users",
	CmdReset:     "reset",
	CmdAddFeed:   "addfeed",
	CmdFeeds:     "feeds",
	CmdFollow:    "follow",
	CmdFollowing: "following",
	CmdUnfollow:  "unfollow",
	CmdAgg:       "agg",
	CmdBrowse:    "browse",
	CmdImport:    "import",
	CmdServer:    "server",
	CmdHelp:      "help",
}

var commandUsage = map[Command]string{
	CmdRegister:  "register <name>               create a user and log in as them",
	CmdLogin:     "login <name>                  switch the current user",
	CmdUsers:     "users                         list users",
	CmdReset:     "reset [-drop]                 delete all users (and their feeds and posts)",
	CmdAddFeed:   "addfeed <name> <url>          add a feed and follow it",
	CmdFeeds:     "feeds                         list all feeds",
	CmdFollow:    "follow <url>                  follow an existing feed",
	CmdFollowing: "following                     list feeds the current user follows",
	CmdUnfollow:  "unfollow <url>                stop following a feed",
	CmdAgg:       "agg <interval> [-workers N]   poll feeds every interval (e.g. 30s, 1m)",
	CmdBrowse:    "browse [limit]                show recent posts from followed feeds",
	CmdImport:    "import [-csv path|url]        import name,url feeds for the current user",
	CmdServer:    "server [-host H] [-port P]    serve the read-only posts API",
	CmdHelp:      "help                          show this message",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// ParseCommand maps a subcommand name to its Command.
func ParseCommand(name string) (Command, error) {
	switch name {
	case "-h", "--help":
		return CmdHelp, nil
	}
	for cmd, n := range commandNames {
		if n == name {
			return cmd, nil
		}
	}
	return 0, fmt.Errorf("unknown command %q", name)
}

// app carries what every handler needs. Output meant for the user goes to
// out; diagnostics go through zerolog.
type app struct {
	cfg *config.Config
	out io.Writer
}

func run(ctx context.Context, a *app, cmd Command, args []string) error {
	switch cmd {
	case CmdRegister:
		return a.register(ctx, args)
	case CmdLogin:
		return a.login(ctx, args)
	case CmdUsers:
		return a.users(ctx, args)
	case CmdReset:
		return a.reset(ctx, args)
	case CmdAddFeed:
		return a.addFeed(ctx, args)
	case CmdFeeds:
		return a.feeds(ctx, args)
	case CmdFollow:
		return a.follow(ctx, args)
	case CmdFollowing:
		return a.following(ctx, args)
	case CmdUnfollow:
		return a.unfollow(ctx, args)
	case CmdAgg:
		return a.agg(ctx, args)
	case CmdBrowse:
		return a.browse(ctx, args)
	case CmdImport:
		return a.importFeeds(ctx, args)
	case CmdServer:
		return a.server(ctx, args)
	case CmdHelp:
		printUsage(a.out)
		return nil
	default:
		return fmt.Errorf("unhandled command %v", cmd)
	}
}

func printUsage(w io.Writer) {
	cmds := make([]Command, 0, len(commandUsage))
	for cmd := range commandUsage {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i] < cmds[j] })

	fmt.Fprintln(w, "Usage: gator <command> [options] [args]")
	fmt.Fprintln(w, "\nCommands:")
	for _, cmd := range cmds {
		fmt.Fprintf(w, "  %s\n", commandUsage[cmd])
	}
	fmt.Fprintln(w, "\nFor command-specific options, use: gator <command> -h")
}

// newFlagSet returns a flag set with the shared -log-level flag registered.
func (a *app) newFlagSet(cmd Command) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(cmd.String(), flag.ContinueOnError)
	fs.SetOutput(a.out)
	logLevel := fs.String("log-level", a.cfg.LogLevel.String(),
		"Log level: debug, info, warn, error (env: GATOR_LOG_LEVEL)")
	return fs, logLevel
}

// parseFlags parses args and applies the requested log level.
func parseFlags(fs *flag.FlagSet, logLevel *string, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", *logLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

// splitLeadingArgs pulls positional arguments that precede any flag, so that
// both "agg 1m -workers 2" and "agg -workers 2 1m" work.
func splitLeadingArgs(args []string) (positional, rest []string) {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return args[:i], args[i:]
		}
	}
	return args, nil
}

// openRepo opens the configured database. The returned closer must be called.
func (a *app) openRepo(readOnly bool) (*storage.Repository, func(), error) {
	dbCfg := database.NewConfig(a.cfg.DBURL)
	dbCfg.ReadOnly = readOnly

	db, err := database.NewDB(dbCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return storage.NewRepository(db), func() { db.Close() }, nil
}

var errNoCurrentUser = errors.New("no user logged in; run 'gator register <name>' or 'gator login <name>'")

// currentUser resolves the logged-in user from the config file.
func (a *app) currentUser(ctx context.Context, repo *storage.Repository) (models.User, error) {
	if a.cfg.CurrentUserName == "" {
		return models.User{}, errNoCurrentUser
	}
	user, err := repo.GetUserByName(ctx, a.cfg.CurrentUserName)
	if errors.Is(err, storage.ErrNotFound) {
		return models.User{}, fmt.Errorf("current user %q does not exist: %w", a.cfg.CurrentUserName, errNoCurrentUser)
	}
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func expectArgs(cmd Command, args []string, atLeast, atMost int) error {
	if len(args) < atLeast || len(args) > atMost {
		synopsis, _, _ := strings.Cut(commandUsage[cmd], "  ")
		return fmt.Errorf("usage: gator %s", synopsis)
	}
	return nil
}
