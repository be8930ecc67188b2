package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arcane-translator/arcane-reader/models"
	"github.com/arcane-translator/arcane-reader/navigator"
	"github.com/arcane-translator/arcane-reader/notify"
	"github.com/arcane-translator/arcane-reader/render"
)

// screenHeight is the number of chapter lines shown per screen.
const screenHeight = 20

var readCmd = &cobra.Command{
	Use:   "read <novel-id> [chapter]",
	Short: "Read a novel, resuming where you left off",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chapter := 0
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("chapter must be a positive number, got %q", args[1])
			}
			chapter = n
		}
		novel, found, err := a.client.GetNovel(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("novel %q not found", args[0])
		}
		return a.read(cmd.Context(), novel, chapter)
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
}

// read opens novel at chapter, or at the resume position when chapter is 0,
// and pages through it until the user quits.
func (a *app) read(ctx context.Context, novel *models.Novel, chapter int) error {
	if chapter == 0 {
		chapters, err := a.client.ListChapters(ctx, novel.ID)
		if err != nil {
			return err
		}
		available := make([]int, 0, len(chapters))
		for _, ch := range chapters {
			available = append(available, ch.Number)
		}
		target, ok := a.nav.ResumeTarget(novel, available)
		if !ok {
			fmt.Fprintf(a.out, "No chapters available yet. Set the first chapter with: reader first-chapter %s <url>\n", novel.ID)
			return nil
		}
		chapter = target
	}

	session := a.nav.NewSession(novel, a.cfg.AutosaveInterval)
	defer session.Leave()

	layout := render.LayoutFor(a.prefs.Reader(), a.cfg.WrapWidth)

	ch, err := session.Open(ctx, chapter)
	if err != nil {
		return err
	}
	view, err := a.chapterView(ch, layout, session)
	if err != nil {
		return err
	}

	for {
		a.printScreen(novel, ch, view)

		line, err := a.prompt("[enter] down [u]p [n]ext [p]rev [q]uit > ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		var dir navigator.Direction
		switch strings.ToLower(line) {
		case "", "d":
			if !view.Down() && view.AtEnd() {
				fmt.Fprintln(a.out, "End of chapter. [n] for the next one.")
			}
			session.Scroll(view.Percent())
			continue
		case "u":
			view.Up()
			session.Scroll(view.Percent())
			continue
		case "n":
			dir = navigator.Next
		case "p":
			dir = navigator.Prev
		case "q":
			return nil
		default:
			continue
		}

		next, err := session.Go(ctx, dir)
		switch {
		case errors.Is(err, navigator.ErrNavigationRejected):
			msg := "This is the first chapter."
			if dir == navigator.Next {
				msg = "This is the last chapter."
			}
			a.notifier.Notify(notify.Notification{Level: notify.LevelInfo, Title: "Navigation", Message: msg})
			continue
		case errors.Is(err, navigator.ErrChapterNotFound):
			a.notifier.Notify(notify.Notification{
				Level:   notify.LevelInfo,
				Title:   "Chapter not ready",
				Message: "It is still being translated. Try again in a moment.",
			})
			continue
		case err != nil:
			return err
		}

		ch = next
		if view, err = a.chapterView(ch, layout, session); err != nil {
			return err
		}
	}
}

// chapterView lays out ch and scrolls to the session's restored position.
func (a *app) chapterView(ch *models.Chapter, layout render.Layout, session *navigator.Session) (*render.Viewport, error) {
	paragraphs, err := render.Paragraphs(ch.Content)
	if err != nil {
		return nil, err
	}
	view := render.NewViewport(layout.Lines(paragraphs), screenHeight)
	view.SetPercent(session.Percent())
	// A chapter that fits on one screen is read as soon as it is shown.
	if view.AtEnd() && session.Percent() < view.Percent() {
		session.Scroll(view.Percent())
	}
	return view, nil
}

func (a *app) printScreen(novel *models.Novel, ch *models.Chapter, view *render.Viewport) {
	fmt.Fprintf(a.out, "\n%s · Chapter %d/%d: %s  (%d%%)\n\n",
		render.Truncate(novel.Title, titleWidth), ch.Number, novel.ChaptersCount, ch.Title, int(view.Percent()))
	for _, line := range view.Visible() {
		fmt.Fprintln(a.out, line)
	}
}
