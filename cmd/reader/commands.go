package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcane-translator/arcane-reader/backend"
	"github.com/arcane-translator/arcane-reader/config"
	"github.com/arcane-translator/arcane-reader/firstchapter"
	"github.com/arcane-translator/arcane-reader/models"
	"github.com/arcane-translator/arcane-reader/notify"
	"github.com/arcane-translator/arcane-reader/pipeline"
	"github.com/arcane-translator/arcane-reader/prefs"
	"github.com/arcane-translator/arcane-reader/progress"
	"github.com/arcane-translator/arcane-reader/render"
)

var novelCmd = &cobra.Command{
	Use:   "novel <id>",
	Short: "Show a novel's details and your progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := a.showNovel(cmd.Context(), args[0])
		return err
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Manage locally recorded reading progress",
}

var progressListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every novel with recorded progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		records := a.progress.All()
		if len(records) == 0 {
			fmt.Fprintln(a.out, "No reading progress recorded.")
			return nil
		}
		ids := make([]string, 0, len(records))
		for id := range records {
			ids = append(ids, id)
		}
		// Most recently read first.
		slices.SortFunc(ids, func(x, y string) int {
			return cmp.Compare(records[y].LastReadAt, records[x].LastReadAt)
		})

		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NOVEL\tCHAPTER\tPROGRESS\tLAST READ")
		now := time.Now()
		for _, id := range ids {
			rec := records[id]
			fmt.Fprintf(tw, "%s\t%d %s\t%d%%\t%s\n", id, rec.LastChapter,
				render.Truncate(rec.ChapterTitle, 32), int(rec.Progress),
				progress.RelativeTime(now.Sub(rec.LastRead())))
		}
		return tw.Flush()
	},
}

var progressRemoveCmd = &cobra.Command{
	Use:   "remove <novel-id>",
	Short: "Forget the reading progress of a novel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a.progress.Remove(args[0])
		a.notifier.Notify(notify.Notification{Level: notify.LevelSuccess, Title: "Progress removed", Message: args[0]})
		return nil
	},
}

var manualFlags struct {
	htmlFile   string
	fetchLocal bool
}

var addSource string

var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a novel to the library from its page on a source site",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a.sources.Load(ctx)
		if addSource != "" && len(a.sources.All()) > 0 {
			if _, ok := a.sources.ByID(addSource); !ok {
				return fmt.Errorf("unknown source %q; run \"reader sources\" for the list", addSource)
			}
		}

		flow := firstchapter.New(a.client, a.notifier)
		novel, err := flow.AddNovel(ctx, args[0], addSource, a.manualFallback())
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Added %s (%s)\n", novel.Title, novel.ID)
		return nil
	},
}

var firstChapterCmd = &cobra.Command{
	Use:   "first-chapter <novel-id> <chapter-url>",
	Short: "Set the URL of a novel's first chapter and translate it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		novel, found, err := a.client.GetNovel(ctx, args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("novel %q not found", args[0])
		}

		flow := firstchapter.New(a.client, a.notifier)
		_, err = flow.SetFirstChapter(ctx, novel, args[1], a.manualFallback())
		return err
	},
}

var refreshHTML string

var refreshCmd = &cobra.Command{
	Use:   "refresh <novel-id>",
	Short: "Re-scrape a novel's details and look for new chapters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := models.RefreshRequest{NovelID: args[0]}
		if refreshHTML != "" {
			content, err := firstchapter.File(refreshHTML).Content(cmd.Context(), "")
			if err != nil {
				return err
			}
			req.HTMLContent = &content
		}

		resp, err := a.client.RefreshNovel(cmd.Context(), req)
		if err != nil {
			a.notifier.Notify(notify.Notification{Level: notify.LevelError, Title: "Refresh failed", Message: err.Error()})
			return err
		}
		if !resp.Success {
			return fmt.Errorf("refresh failed: %s", resp.Message)
		}
		a.notifier.Notify(notify.Notification{
			Level:   notify.LevelSuccess,
			Title:   "Novel refreshed",
			Message: backend.RefreshMessage(resp.NewChaptersCount),
		})
		return nil
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the source sites the backend can scrape",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a.sources.Load(cmd.Context())
		sites := a.sources.All()
		if len(sites) == 0 {
			fmt.Fprintln(a.out, "No source sites available.")
			return nil
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "\tID\tNAME\tLANGUAGE\tURL")
		for _, site := range sites {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.sources.FlagFor(site.ID), site.ID, site.Name, site.Language, site.URL)
		}
		return tw.Flush()
	},
}

var prefsFlags struct {
	theme      string
	fontSize   int
	lineHeight float64
	reset      bool
}

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change reader display settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		current := a.prefs.Reader()
		flags := cmd.Flags()
		switch {
		case prefsFlags.reset:
			current = a.prefs.SetReader(prefs.DefaultReaderPrefs())
		case flags.Changed("theme") || flags.Changed("font-size") || flags.Changed("line-height"):
			if flags.Changed("theme") {
				current.Theme = prefs.Theme(strings.ToLower(prefsFlags.theme))
			}
			if flags.Changed("font-size") {
				current.FontSize = prefsFlags.fontSize
			}
			if flags.Changed("line-height") {
				current.LineHeight = prefsFlags.lineHeight
			}
			current = a.prefs.SetReader(current)
		}

		layout := render.LayoutFor(current, a.cfg.WrapWidth)
		fmt.Fprintf(a.out, "Theme:       %s\n", current.Theme)
		fmt.Fprintf(a.out, "Font size:   %d (%d-%d)\n", current.FontSize, prefs.MinFontSize, prefs.MaxFontSize)
		fmt.Fprintf(a.out, "Line height: %.1f\n", current.LineHeight)
		fmt.Fprintf(a.out, "Text width:  %d columns\n", layout.Width)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show library statistics and backend health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		health := "ok"
		if err := a.client.Health(ctx); err != nil {
			health = fmt.Sprintf("unavailable (%s)", backend.ErrorTypeLabel(err))
		}
		stats, err := a.client.Stats(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Backend:  %s\n", health)
		fmt.Fprintf(a.out, "Novels:   %d\n", stats.NovelCount)
		fmt.Fprintf(a.out, "Chapters: %d\n", stats.ChapterCount)
		fmt.Fprintf(a.out, "Reading:  %d novels with local progress\n", len(a.progress.All()))
		return nil
	},
}

var exportFlags struct {
	output string
	format string
	filter string
	value  string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the library listing to CSV, JSON lines, or both",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "arcane-reader", config.Version)
	},
}

func init() {
	addCmd.Flags().StringVarP(&addSource, "source", "s", "", "Source site id (see \"reader sources\")")
	for _, c := range []*cobra.Command{addCmd, firstChapterCmd} {
		c.Flags().StringVar(&manualFlags.htmlFile, "html", "", "Saved page HTML to send if the backend cannot fetch the page")
		c.Flags().BoolVar(&manualFlags.fetchLocal, "fetch-local", false, "Fetch the page from this machine if the backend cannot")
		c.MarkFlagsMutuallyExclusive("html", "fetch-local")
	}
	refreshCmd.Flags().StringVar(&refreshHTML, "html", "", "Saved novel page HTML to send with the refresh")

	prefsCmd.Flags().StringVar(&prefsFlags.theme, "theme", "", "sepia, light or dark")
	prefsCmd.Flags().IntVar(&prefsFlags.fontSize, "font-size", 0, "Font size; narrows the text column as it grows")
	prefsCmd.Flags().Float64Var(&prefsFlags.lineHeight, "line-height", 0, "Line height; 1.8 and above doubles paragraph gaps")
	prefsCmd.Flags().BoolVar(&prefsFlags.reset, "reset", false, "Restore the default settings")

	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "library.csv", "Output file path")
	exportCmd.Flags().StringVarP(&exportFlags.format, "format", "f", "csv", "Output format: csv, json, or dual")
	exportCmd.Flags().StringVar(&exportFlags.filter, "filter-by", "", "Listing filter: language, genre or source")
	exportCmd.Flags().StringVar(&exportFlags.value, "filter-value", "", "Value for --filter-by")

	progressCmd.AddCommand(progressListCmd, progressRemoveCmd)
	rootCmd.AddCommand(novelCmd, progressCmd, addCmd, firstChapterCmd, refreshCmd,
		sourcesCmd, prefsCmd, statsCmd, exportCmd, versionCmd)
}

// manualFallback returns the content source used when the backend could not
// fetch a page: the --html file, a local fetch, or whatever the user picks.
func (a *app) manualFallback() firstchapter.Fallback {
	return func(ctx context.Context, cause error) (firstchapter.ContentProvider, error) {
		switch {
		case manualFlags.htmlFile != "":
			return firstchapter.File(manualFlags.htmlFile), nil
		case manualFlags.fetchLocal:
			return firstchapter.NewLocalFetcher(a.cfg.UserAgent, a.cfg.Timeout), nil
		}

		fmt.Fprintf(a.out, "The backend could not fetch the page: %v\n", cause)
		choice, err := a.prompt("[f]etch it from this machine, [p]aste the HTML, enter a saved file path, or leave empty to cancel > ")
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		switch choice {
		case "":
			return nil, nil
		case "f":
			return firstchapter.NewLocalFetcher(a.cfg.UserAgent, a.cfg.Timeout), nil
		case "p":
			fmt.Fprintln(a.out, "Paste the page HTML, then press Ctrl-D:")
			return firstchapter.Paste(a.in), nil
		default:
			return firstchapter.File(choice), nil
		}
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := a.cfg

	switch exportFlags.filter {
	case "", backend.FilterLanguage, backend.FilterGenre, backend.FilterSource:
	default:
		return fmt.Errorf("unsupported filter: %s", exportFlags.filter)
	}

	writer, err := createWriter(strings.ToLower(exportFlags.format), exportFlags.output)
	if err != nil {
		return err
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.ExportWorkers)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	pages, err := pipeline.Export(ctx, a.client.Listing(exportFlags.filter, exportFlags.value), p, pipeline.NewLimiter(cfg.ExportRate))
	if closeErr := p.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}

	printSummary(a.out, pages, time.Since(startTime), exportFlags.output, p.GetMetrics())
	return nil
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(out io.Writer, pages int, duration time.Duration, outputFile string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(out, "\n"+separator)
	fmt.Fprintln(out, "Export complete")

	total := int64(0)
	if processed, ok := metrics["processed_novels"].(int64); ok {
		total = processed
	}
	perSec := 0.0
	if duration.Seconds() > 0 {
		perSec = float64(total) / duration.Seconds()
	}

	fmt.Fprintf(out, "  Novels:        %d\n", total)
	fmt.Fprintf(out, "  Pages:         %d\n", pages)
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Fprintf(out, "  Skipped:       %v\n", valErrors)
	}
	fmt.Fprintf(out, "  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  Novels/sec:    %.2f\n", perSec)
	fmt.Fprintf(out, "  Output file:   %s\n", outputFile)
	fmt.Fprintln(out, separator)
}
