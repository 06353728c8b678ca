package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/library"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		Short:   "Show library statistics",
		GroupID: "query",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			stats, err := a.client.Stats(ctx)
			if err != nil {
				return err
			}
			return a.print(stats)
		},
	}
}

func newBooksCmd(a *app) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:     "books",
		Short:   "Search the catalogue",
		GroupID: "query",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			page, err := a.client.Books(ctx, search)
			if err != nil {
				return err
			}
			return a.print(page)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "title search term")
	return cmd
}

func newBookCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "book ID",
		Short:   "Show one book",
		GroupID: "query",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book id", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()
			book, err := a.client.Book(ctx, id)
			if err != nil {
				return err
			}
			return a.print(book)
		},
	}
}

func newUsersCmd(a *app) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:     "users",
		Short:   "Search members",
		GroupID: "query",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			page, err := a.client.Users(ctx, search)
			if err != nil {
				return err
			}
			return a.print(page)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "username search term")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "history USER_ID",
		Short:   "Show a user's borrow history",
		GroupID: "query",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := a.context(cmd)
			defer cancel()
			history, err := a.client.BorrowHistory(ctx, id)
			if err != nil {
				return err
			}
			return a.print(history)
		},
	}
}

func newDashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "dashboard",
		Short:   "Load stats, books and users together",
		GroupID: "query",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()
			d, err := a.client.Dashboard(ctx)
			if err != nil {
				return err
			}
			return a.print(d)
		},
	}
}

type booksEvent struct {
	Status string             `json:"status"`
	Page   *library.BooksPage `json:"page,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func newWatchBooksCmd(a *app) *cobra.Command {
	var (
		search   string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch-books",
		Short: "Stream book search updates until interrupted",
		Long: `Keep a book search observed and print one JSON line per state change.

With --interval, the Books tag is invalidated periodically so the search is
refetched in the background.`,
		GroupID: "query",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			// The ticker must stop before the client is closed.
			var wg sync.WaitGroup
			defer func() {
				cancel()
				wg.Wait()
			}()

			if interval > 0 {
				qc := a.client.Cache()
				wg.Add(1)
				go func() {
					defer wg.Done()
					ticker := time.NewTicker(interval)
					defer ticker.Stop()
					for {
						select {
						case <-ctx.Done():
							return
						case <-ticker.C:
							_, _ = qc.Invalidate(ctx, cache.CollectionTag(library.TagBooks))
						}
					}
				}()
			}

			err := a.client.WatchBooks(ctx, search, func(u library.BooksUpdate) error {
				ev := booksEvent{Status: u.Status.String()}
				if u.Err != nil {
					ev.Error = u.Err.Error()
				} else if u.Status == cache.StatusFresh || u.Status == cache.StatusStale {
					ev.Page = &u.Page
				}
				return a.printLine(ev)
			})
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "title search term")
	cmd.Flags().DurationVar(&interval, "interval", 0, "refetch interval (0 disables)")
	return cmd
}

func parseID(what, s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return id, nil
}
