package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"gator/internal/models"
	"gator/internal/storage"
)

func (a *app) addFeed(ctx context.Context, args []string) error {
	fs, logLevel := a.newFlagSet(CmdAddFeed)
	if err := parseFlags(fs, logLevel, args); err != nil {
		return err
	}
	if err := expectArgs(CmdAddFeed, fs.Args(), 2, 2); err != nil {
		return err
	}
	name, feedURL := fs.Arg(0), fs.Arg(1)
	if err := validateFeedURL(feedURL); err != nil {
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

	feed := models.NewFeed(name, feedURL, user.ID)
	if err := repo.CreateFeed(ctx, feed); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return fmt.Errorf("feed %s already exists; use 'gator follow %s'", feedURL, feedURL)
		}
		return err
	}
	if _, err := repo.CreateFeedFollow(ctx, models.NewFeedFollow(user.ID, feed.ID)); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Feed added: %s (%s)\n", feed.Name, feed.URL)
	fmt.Fprintf(a.out, "%s now follows %s\n", user.Name, feed.Name)
	return nil
}

func (a *app) feeds(ctx context.Context, args []string) error {
	fs, logLevel := a.newFlagSet(CmdFeeds)
	if err := parseFlags(fs, logLevel, args); err != nil {
		return err
	}
	if err := expectArgs(CmdFeeds, fs.Args(), 0, 0); err != nil {
		return err
	}

	repo, closeDB, err := a.openRepo(false)
	if err != nil {
		return err
	}
	defer closeDB()

	feeds, err := repo.ListFeedsWithOwner(ctx)
	if err != nil {
		return err
	}
	for _, f := range feeds {
		lastFetched := "never"
		if f.LastFetchedAt.Valid {
			lastFetched = f.LastFetchedAt.Time.Local().Format(time.DateTime)
		}
		fmt.Fprintf(a.out, "* %s\n  url: %s\n  added by: %s\n  last fetched: %s\n",
			f.Name, f.URL, f.AddedBy.String, lastFetched)
	}
	return nil
}

func (a *app) follow(ctx context.Context, args []string) error {
	fs, logLevel := a.newFlagSet(CmdFollow)
	if err := parseFlags(fs, logLevel, args); err != nil {
		return err
	}
	if err := expectArgs(CmdFollow, fs.Args(), 1, 1); err != nil {
		return err
	}
	feedURL := fs.Arg(0)

	repo, closeDB, err := a.openRepo(false)
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := a.currentUser(ctx, repo)
	if err != nil {
		return err
	}
	feed, err := repo.GetFeedByURL(ctx, feedURL)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no feed with url %s; add it with 'gator addfeed'", feedURL)
	}
	if err != nil {
		return err
	}

	followed, err := repo.CreateFeedFollow(ctx, models.NewFeedFollow(user.ID, feed.ID))
	if errors.Is(err, storage.ErrDuplicate) {
		return fmt.Errorf("%s already follows %s", user.Name, feed.Name)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s now follows %s\n", followed.UserName, followed.FeedName)
	return nil
}

func (a *app) following(ctx context.Context, args []string) error {
	fs, logLevel := a.newFlagSet(CmdFollowing)
	if err := parseFlags(fs, logLevel, args); err != nil {
		return err
	}
	if err := expectArgs(CmdFollowing, fs.Args(), 0, 0); err != nil {
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
	follows, err := repo.ListFollowsForUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(follows) == 0 {
		fmt.Fprintf(a.out, "%s does not follow any feeds\n", user.Name)
		return nil
	}
	for _, f := range follows {
		fmt.Fprintf(a.out, "* %s (%s)\n", f.FeedName, f.FeedURL)
	}
	return nil
}

func (a *app) unfollow(ctx context.Context, args []string) error {
	fs, logLevel := a.newFlagSet(CmdUnfollow)
	if err := parseFlags(fs, logLevel, args); err != nil {
		return err
	}
	if err := expectArgs(CmdUnfollow, fs.Args(), 1, 1); err != nil {
		return err
	}
	feedURL := fs.Arg(0)

	repo, closeDB, err := a.openRepo(false)
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := a.currentUser(ctx, repo)
	if err != nil {
		return err
	}
	if err := repo.DeleteFeedFollow(ctx, user.ID, feedURL); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s does not follow %s", user.Name, feedURL)
		}
		return err
	}

	fmt.Fprintf(a.out, "%s unfollowed %s\n", user.Name, feedURL)
	return nil
}

func validateFeedURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid feed url %q: must be an absolute http(s) URL", raw)
	}
	return nil
}
