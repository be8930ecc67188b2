package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcane-translator/arcane-reader/backend"
	"github.com/arcane-translator/arcane-reader/models"
	"github.com/arcane-translator/arcane-reader/notify"
	"github.com/arcane-translator/arcane-reader/pagination"
	"github.com/arcane-translator/arcane-reader/render"
)

const titleWidth = 48

var browseFilter struct {
	language string
	genre    string
	source   string
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Page through the library",
	Args:  cobra.NoArgs,
	RunE:  runBrowse,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search novels by title; without a query, pick a recent search",
	RunE:  runSearch,
}

var recentClear bool

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recent searches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if recentClear {
			a.prefs.ClearRecentSearches()
			fmt.Fprintln(a.out, "Recent searches cleared.")
			return nil
		}
		terms := a.prefs.RecentSearches()
		if len(terms) == 0 {
			fmt.Fprintln(a.out, "No recent searches.")
			return nil
		}
		for i, term := range terms {
			fmt.Fprintf(a.out, "%d. %s\n", i+1, term)
		}
		return nil
	},
}

func init() {
	browseCmd.Flags().StringVar(&browseFilter.language, "language", "", "Only novels from sources in this language")
	browseCmd.Flags().StringVar(&browseFilter.genre, "genre", "", "Only novels in this genre")
	browseCmd.Flags().StringVar(&browseFilter.source, "source", "", "Only novels from this source site")
	browseCmd.MarkFlagsMutuallyExclusive("language", "genre", "source")

	recentCmd.Flags().BoolVar(&recentClear, "clear", false, "Forget all recent searches")

	rootCmd.AddCommand(browseCmd, searchCmd, recentCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	title := "Library"
	filterBy, filterValue := "", ""
	switch {
	case browseFilter.language != "":
		filterBy, filterValue = backend.FilterLanguage, browseFilter.language
	case browseFilter.genre != "":
		filterBy, filterValue = backend.FilterGenre, browseFilter.genre
	case browseFilter.source != "":
		filterBy, filterValue = backend.FilterSource, browseFilter.source
	}
	if filterBy != "" {
		title = fmt.Sprintf("Library (%s: %s)", filterBy, filterValue)
	}
	return a.listLoop(cmd.Context(), title, a.client.Listing(filterBy, filterValue))
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		picked, err := a.pickRecentSearch()
		if err != nil || picked == "" {
			return err
		}
		query = picked
	}
	a.prefs.AddRecentSearch(query)
	return a.listLoop(cmd.Context(), fmt.Sprintf("Search: %q", query), a.client.Search(query))
}

func (a *app) pickRecentSearch() (string, error) {
	terms := a.prefs.RecentSearches()
	for i, term := range terms {
		fmt.Fprintf(a.out, "%d. %s\n", i+1, term)
	}
	line, err := a.prompt("Search (or number of a recent search) > ")
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(terms) {
		return terms[n-1], nil
	}
	return line, nil
}

// listLoop shows one listing and reads paging commands until the user quits.
func (a *app) listLoop(ctx context.Context, title string, fetch pagination.FetchFunc) error {
	ctrl := pagination.NewController(fetch, a.cfg.ItemsPerPage, a.notifier)
	defer ctrl.Close()

	a.sources.Load(ctx)
	if err := ctrl.LoadFirst(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	for {
		snap := ctrl.Snapshot()
		a.printListing(title, snap)

		line, err := a.prompt("[n]ext [p]rev [f]irst [l]ast [g N] page [s N] size [r]efresh [o N] open [q]uit > ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		command, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch command {
		case "n":
			err = ctrl.Next(ctx)
		case "p":
			err = ctrl.Prev(ctx)
		case "f":
			err = ctrl.First(ctx)
		case "l":
			err = ctrl.Last(ctx)
		case "g":
			if !ctrl.EditPageInput(arg) {
				a.notifier.Notify(notify.Notification{Level: notify.LevelError, Title: "Invalid page", Message: "Page must be a number"})
				continue
			}
			err = ctrl.CommitPageInput(ctx)
		case "s":
			size, _ := strconv.Atoi(arg)
			err = ctrl.SetItemsPerPage(ctx, size)
			if errors.Is(err, pagination.ErrInvalidPageSize) {
				a.notifier.Notify(notify.Notification{
					Level:   notify.LevelError,
					Title:   "Invalid page size",
					Message: fmt.Sprintf("Choose one of %v", pagination.ItemsPerPageOptions),
				})
				continue
			}
		case "r":
			err = ctrl.Refresh(ctx)
		case "o":
			index, _ := strconv.Atoi(arg)
			if index < 1 || index > len(snap.Items) {
				a.notifier.Notify(notify.Notification{Level: notify.LevelError, Title: "No such novel", Message: arg})
				continue
			}
			if err := a.openNovel(ctx, snap.Items[index-1].ID); err != nil && ctx.Err() == nil {
				a.notifier.Notify(notify.Notification{Level: notify.LevelError, Title: "Error", Message: err.Error()})
			}
		case "q":
			return nil
		default:
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Load failures were already reported through the notifier.
		if err != nil {
			slog.Debug("listing action failed", slog.String("action", command), slog.Any("error", err))
		}
	}
}

func (a *app) printListing(title string, snap pagination.Snapshot) {
	fmt.Fprintf(a.out, "\n%s  page %d/%d, %d novels, %d per page\n",
		title, snap.CurrentPage, snap.TotalPages, snap.TotalCount, snap.ItemsPerPage)
	if len(snap.Items) == 0 {
		fmt.Fprintln(a.out, "  No novels found.")
		return
	}
	for i, n := range snap.Items {
		fmt.Fprintf(a.out, "%3d. %s %s %5d ch", i+1, a.sources.FlagFor(n.Source),
			render.PadRight(render.Truncate(n.Title, titleWidth), titleWidth), n.ChaptersCount)
		if summary, ok := a.progress.Summary(n.ID); ok {
			fmt.Fprintf(a.out, "  %s", summary)
		}
		fmt.Fprintln(a.out)
	}
}

// openNovel shows a novel's details and offers to start reading.
func (a *app) openNovel(ctx context.Context, id string) error {
	novel, err := a.showNovel(ctx, id)
	if err != nil {
		return err
	}
	line, err := a.prompt("[r]ead or [b]ack > ")
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	if line == "r" {
		return a.read(ctx, novel, 0)
	}
	return nil
}

func (a *app) showNovel(ctx context.Context, id string) (*models.Novel, error) {
	novel, found, err := a.client.GetNovel(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("novel %q not found", id)
	}
	a.sources.Load(ctx)

	fmt.Fprintf(a.out, "\n%s %s\n", a.sources.FlagFor(novel.Source), novel.Title)
	if novel.OriginalTitle != "" {
		fmt.Fprintf(a.out, "  %s\n", novel.OriginalTitle)
	}
	if novel.Author != "" {
		fmt.Fprintf(a.out, "  Author:   %s\n", novel.Author)
	}
	source := novel.Source
	if site, ok := a.sources.ByID(novel.Source); ok {
		source = site.Name
	}
	fmt.Fprintf(a.out, "  Source:   %s\n", source)
	if novel.Status != "" {
		fmt.Fprintf(a.out, "  Status:   %s\n", novel.Status)
	}
	if len(novel.Genres) > 0 {
		fmt.Fprintf(a.out, "  Genres:   %s\n", strings.Join(novel.Genres, ", "))
	}
	fmt.Fprintf(a.out, "  Chapters: %d\n", novel.ChaptersCount)
	if novel.LastUpdated > 0 {
		fmt.Fprintf(a.out, "  Updated:  %s\n", novel.LastUpdatedTime().Format(time.DateOnly))
	}
	if novel.Summary != "" {
		layout := render.LayoutFor(a.prefs.Reader(), a.cfg.WrapWidth)
		if paragraphs, err := render.Paragraphs(novel.Summary); err == nil {
			fmt.Fprintln(a.out)
			for _, line := range layout.Lines(paragraphs) {
				fmt.Fprintf(a.out, "  %s\n", line)
			}
		}
	}
	if summary, ok := a.progress.Summary(novel.ID); ok {
		fmt.Fprintf(a.out, "\n  Continue reading: %s\n", summary)
	}
	if novel.ChaptersCount == 0 {
		fmt.Fprintf(a.out, "\n  No chapters yet. Set the first chapter with: reader first-chapter %s <url>\n", novel.ID)
	}
	return novel, nil
}
