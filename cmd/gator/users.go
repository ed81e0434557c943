package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"gator/internal/database"
	"gator/internal/models"
	"gator/internal/storage"
)

func (a *app) register(ctx context.Context, args []string) error {
	fs, logLevel := a.newFlagSet(CmdRegister)
	if err := parseFlags(fs, logLevel, args); err != nil {
		return err
	}
	if err := expectArgs(CmdRegister, fs.Args(), 1, 1); err != nil {
		return err
	}
	name := fs.Arg(0)

	repo, closeDB, err := a.openRepo(false)
	if err != nil {
		return err
	}
	defer closeDB()

	user := models.NewUser(name)
	if err := repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return fmt.Errorf("user %q already exists", name)
		}
		return err
	}
	if err := a.cfg.SetUser(user.Name); err != nil {
		return err
	}

	log.Debug().Str("user_id", user.ID).Str("user", user.Name).Msg("User registered")
	fmt.Fprintf(a.out, "User %s created (id %s) and logged in\n", user.Name, user.ID)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs, logLevel := a.newFlagSet(CmdLogin)
	if err := parseFlags(fs, logLevel, args); err != nil {
		return err
	}
	if err := expectArgs(CmdLogin, fs.Args(), 1, 1); err != nil {
		return err
	}
	name := fs.Arg(0)

	repo, closeDB, err := a.openRepo(false)
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := repo.GetUserByName(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("user %q does not exist", name)
	}
	if err != nil {
		return err
	}
	if err := a.cfg.SetUser(user.Name); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s\n", user.Name)
	return nil
}

func (a *app) users(ctx context.Context, args []string) error {
	fs, logLevel := a.newFlagSet(CmdUsers)
	if err := parseFlags(fs, logLevel, args); err != nil {
		return err
	}
	if err := expectArgs(CmdUsers, fs.Args(), 0, 0); err != nil {
		return err
	}

	repo, closeDB, err := a.openRepo(false)
	if err != nil {
		return err
	}
	defer closeDB()

	users, err := repo.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.Name == a.cfg.CurrentUserName {
			fmt.Fprintf(a.out, "* %s (current)\n", u.Name)
			continue
		}
		fmt.Fprintf(a.out, "* %s\n", u.Name)
	}
	return nil
}

// reset deletes every user; feeds, follows and posts go with them through
// ON DELETE CASCADE. With -drop a SQLite database file is removed instead,
// and a Postgres schema is rolled back.
func (a *app) reset(ctx context.Context, args []string) error {
	fs, logLevel := a.newFlagSet(CmdReset)
	drop := fs.Bool("drop", false, "Delete the SQLite database file (Postgres: roll back every migration) instead of deleting users")
	if err := parseFlags(fs, logLevel, args); err != nil {
		return err
	}
	if err := expectArgs(CmdReset, fs.Args(), 0, 0); err != nil {
		return err
	}

	if *drop {
		if err := database.DeleteDB(database.NewConfig(a.cfg.DBURL)); err != nil {
			return fmt.Errorf("failed to delete database: %w", err)
		}
		log.Info().Str("path", a.cfg.DBURL).Msg("Deleted database")
		fmt.Fprintln(a.out, "Database deleted")
		return nil
	}

	repo, closeDB, err := a.openRepo(false)
	if err != nil {
		return err
	}
	defer closeDB()

	n, err := repo.DeleteAllUsers(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %d users\n", n)
	return nil
}
