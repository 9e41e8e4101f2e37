// Command gigs browses concerts from the concert backend: list and search,
// follow shows, toggle on-sale reminders and post reviews.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmagar/gigs-cli/internal/config"
	"github.com/jmagar/gigs-cli/internal/ui"
)

func main() {
	// "gigs help" behaves like "gigs --help".
	if len(os.Args) > 1 && os.Args[1] == "help" {
		os.Args[1] = "--help"
	}

	args, parser := config.ParseArgs()
	if parser.Subcommand() == nil {
		parser.WriteHelp(os.Stdout)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, args)
	stop()
	if err != nil {
		reportErr(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args *config.Args) error {
	if args.Config != nil {
		return runConfig(args.Config, args.JSON)
	}

	cfg, err := config.ParseCfg(args)
	if err != nil {
		return fmt.Errorf("failed to resolve configuration: %w", err)
	}
	if args.Search != nil && args.Search.Limit > 0 {
		cfg.AISearchLimit = args.Search.Limit
	}

	a, err := newApp(cfg, args)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case args.List != nil:
		return a.runList(ctx, args.List)
	case args.Follows != nil:
		return a.runFollows(ctx, args.Follows)
	case args.Artists != nil:
		return a.runArtists(ctx, args.Artists)
	case args.Show != nil:
		return a.runShow(ctx, args.Show)
	case args.Follow != nil:
		return a.runFollow(ctx, args.Follow)
	case args.Remind != nil:
		return a.runRemind(ctx, args.Remind)
	case args.Review != nil:
		return a.runReview(ctx, args.Review)
	case args.Search != nil:
		return a.runSearch(ctx, args.Search)
	case args.Refresh != nil:
		return a.runRefresh(ctx)
	case args.Crawl != nil:
		return a.runCrawl(ctx)
	case args.Status != nil:
		return a.runStatus(ctx)
	}
	return errors.New("no command given")
}

func reportErr(err error) {
	if errors.Is(err, context.Canceled) {
		ui.PrintWarning("interrupted")
		return
	}
	ui.PrintError(err.Error())
}
