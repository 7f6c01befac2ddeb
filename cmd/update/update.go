// Package update implements the update command: run the calendar, notice
// and exam routine pipelines sequentially against the campus site.
package update

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/campuscnr/cmd/common"
	"github.com/jonesrussell/campuscnr/internal/calendar"
	"github.com/jonesrussell/campuscnr/internal/download"
	"github.com/jonesrussell/campuscnr/internal/examroutine"
	"github.com/jonesrussell/campuscnr/internal/notice"
)

var (
	calendarOnly bool
	noticeOnly   bool
	examOnly     bool
)

// Command returns the update command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check the campus site for new documents",
		Long: `Check the campus site for new calendars, notices and exam routines.
Pipelines run sequentially in a fixed order, separated by a short pause.
With no flags, all three pipelines run.`,
		RunE: runUpdate,
	}

	cmd.Flags().BoolVar(&calendarOnly, "calendar", false, "update academic calendars")
	cmd.Flags().BoolVar(&noticeOnly, "notice", false, "update notices")
	cmd.Flags().BoolVar(&examOnly, "examroutine", false, "update exam routines")

	return cmd
}

// runUpdate executes the selected pipelines.
func runUpdate(cmd *cobra.Command, _ []string) error {
	deps, err := common.NewDeps()
	if err != nil {
		return err
	}
	defer deps.Close()

	all := !calendarOnly && !noticeOnly && !examOnly

	return Run(cmd.Context(), deps, Selection{
		Calendar:    all || calendarOnly,
		Notice:      all || noticeOnly,
		ExamRoutine: all || examOnly,
	})
}

// Selection names the pipelines to run.
type Selection struct {
	Calendar    bool
	Notice      bool
	ExamRoutine bool
}

// Run executes the selected pipelines sequentially in fixed order, with a
// cooldown pause between them. A pipeline failure is logged and does not
// affect its siblings.
func Run(ctx context.Context, deps *common.Deps, sel Selection) error {
	cfg := deps.Config
	engine := download.NewEngine(
		deps.Fetcher, deps.Store, deps.Logger.WithComponent("download"))

	type pipeline struct {
		name     string
		selected bool
		update   func(context.Context) error
	}

	pipelines := []pipeline{
		{
			name:     "calendar",
			selected: sel.Calendar,
			update: calendar.New(
				deps.Fetcher, engine, deps.Store, deps.Normalizer,
				cfg.URLs.Calendar, cfg.CalendarDir(),
				cfg.Delays.Calendar,
				deps.Logger.WithComponent("calendar"),
			).Update,
		},
		{
			name:     "notice",
			selected: sel.Notice,
			update: notice.NewPipeline(
				notice.NewSyncer(
					deps.Fetcher, deps.Normalizer,
					cfg.URLs.Notice, cfg.URLs.NoticeAPI,
					deps.Logger.WithComponent("notice"),
				),
				deps.Fetcher, deps.Store, cfg.NoticeDir(),
				cfg.Delays.NoticeFile, cfg.Delays.Notice,
				deps.Logger.WithComponent("notice"),
			).Update,
		},
		{
			name:     "examroutine",
			selected: sel.ExamRoutine,
			update: examroutine.New(
				deps.Fetcher, engine, deps.Store, deps.Normalizer,
				cfg.URLs.Routine, cfg.ExamDir(), cfg.SuppExamDir(),
				cfg.Delays.Exam,
				deps.Logger.WithComponent("examroutine"),
			).Update,
		},
	}

	first := true
	for _, p := range pipelines {
		if !p.selected {
			continue
		}

		if !first {
			if err := download.Delay(ctx, cfg.Delays.Cooldown); err != nil {
				return err
			}
		}
		first = false

		if err := p.update(ctx); err != nil {
			deps.Logger.WithError(err).Error("pipeline failed", "pipeline", p.name)
		}
	}

	return nil
}
