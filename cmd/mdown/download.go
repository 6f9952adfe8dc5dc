package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/kerbaras/mdown/pkg/app"
	"github.com/kerbaras/mdown/pkg/app/styles"
	"github.com/kerbaras/mdown/pkg/config"
	"github.com/kerbaras/mdown/pkg/services"
	"github.com/kerbaras/mdown/pkg/sources"
	"github.com/kerbaras/mdown/pkg/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type downloadFlags struct {
	volume  string
	chapter string
	offset  int
	force   bool
	update  bool
	check   bool
	plain   bool
}

func newDownloadCmd(v *viper.Viper, version string) *cobra.Command {
	var f downloadFlags

	cmd := &cobra.Command{
		Use:   "download <manga-id>...",
		Short: "Download the chapters of one or more manga",
		Long: `Download every chapter of a manga that is not already on disk.

Chapters are compared against the local ledger: new ones are downloaded, ones whose
remote copy changed are marked superseded and, with --update, fetched again.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, v, version, args, f)
		},
	}

	flags := cmd.Flags()
	flags.StringP("language", "l", "", "Language code to download, * for all (default en)")
	flags.Bool("saver", false, "Download data-saver (compressed) pages")
	flags.IntP("max-consecutive", "m", 0, fmt.Sprintf("Pages downloaded at once (default %d)", config.DefaultMaxConsecutive))
	flags.StringVar(&f.volume, "volume", "", "Only download this volume")
	flags.StringVarP(&f.chapter, "chapter", "c", "", "Only download this chapter")
	flags.IntVar(&f.offset, "offset", 0, "Skip this many chapters before downloading")
	flags.BoolVarP(&f.force, "force", "f", false, "Download chapters even if they already exist or are locked")
	flags.BoolVarP(&f.update, "update", "u", false, "Download superseded chapters again")
	flags.BoolVar(&f.check, "check", false, "Only show what would be downloaded")
	flags.BoolVar(&f.plain, "plain", false, "Plain progress output instead of the terminal UI")

	_ = v.BindPFlag("language", flags.Lookup("language"))
	_ = v.BindPFlag("saver", flags.Lookup("saver"))
	_ = v.BindPFlag("max_consecutive", flags.Lookup("max-consecutive"))

	return cmd
}

func runDownload(cmd *cobra.Command, v *viper.Viper, version string, ids []string, f downloadFlags) error {
	interactive := !f.plain && !f.check
	rt, err := newRuntime(v, version, interactive)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg := rt.cfg
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	if cfg.ExceedsCaution() {
		rt.log.Warn().Int("max_consecutive", cfg.MaxConsecutive).Msg("batch size above recommended ceiling")
		fmt.Fprintln(errOut, styles.StatusWarning.Render(fmt.Sprintf(
			"max-consecutive %d is above %d, pages may come back partial or corrupt",
			cfg.MaxConsecutive, config.CautionMaxConsecutive)))
	}

	controller, err := newController(rt)
	if err != nil {
		return err
	}

	opts := services.RunOptions{
		ReconcileOptions: services.ReconcileOptions{
			Language: cfg.Language,
			Volume:   f.volume,
			Chapter:  f.chapter,
			Offset:   f.offset,
			Force:    f.force,
			Update:   f.update,
			Saver:    cfg.Saver,
		},
		Check: f.check,
	}

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	for _, id := range ids {
		pc := services.NewPipelineContext(rt.log)
		pc.Saver = cfg.Saver
		pc.Update = f.update

		run := func() (*services.Summary, error) {
			defer pc.CloseEvents()
			return controller.Run(ctx, pc, id, opts)
		}

		var summary *services.Summary
		if interactive {
			summary, err = app.NewApp(pc, run, stop).Run()
		} else {
			summary, err = runPlain(pc, run, errOut, !f.check)
		}

		if summary != nil {
			printSummary(out, summary, f.check)
		}
		if pc.Suspended.Len() > 0 {
			fmt.Fprintln(errOut, styles.StatusError.Render(fmt.Sprintf("%d errors during run:", pc.Suspended.Len())))
			pc.Suspended.Print(errOut)
		}
		if err != nil {
			return fmt.Errorf("downloading %s: %w", id, err)
		}
	}
	return nil
}

// newController opens the stores and wires the MangaDex source into a controller
func newController(rt *runtime) (*services.MangaController, error) {
	cfg := rt.cfg
	ledger, err := rt.openLedger()
	if err != nil {
		return nil, err
	}
	history, err := rt.openHistory()
	if err != nil {
		return nil, err
	}
	resources, err := rt.openResources()
	if err != nil {
		return nil, err
	}

	source := sources.NewMangaDex(sources.Options{
		BaseURL:       cfg.API.BaseURL,
		UserAgent:     cfg.API.UserAgent,
		RetryInterval: cfg.API.RetryInterval,
		Cache:         resources,
		Logger:        rt.log,
	})
	pages := services.NewPageDownloader(source.API(), cfg.MaxConsecutive)
	chapters := services.NewChapterDownloader(source, pages, ledger, history)
	return services.NewMangaController(source, ledger, chapters, cfg.Folder, cfg.CacheDir), nil
}

// runPlain drives a run with line-based progress bars, for pipes and --check
func runPlain(pc *services.PipelineContext, run func() (*services.Summary, error), w io.Writer, bars bool) (*services.Summary, error) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var bar *progressbar.ProgressBar
		for ev := range pc.Events() {
			if !bars {
				continue
			}
			switch ev.Kind {
			case services.EventFetch:
				fmt.Fprintf(w, "%s %s\n", utils.DescFetching, ev.Label)
			case services.EventChapterStart:
				bar = utils.NewProgressBar(w, ev.TotalPages, fmt.Sprintf("%s %s", utils.DescDownloading, ev.Label))
			case services.EventPage:
				if bar != nil {
					_ = bar.Set(ev.CurrentPage)
				}
			case services.EventChapterDone:
				if bar != nil {
					_ = bar.Finish()
					bar = nil
				}
				fmt.Fprintf(w, "%s %s\n", ev.Label, styles.StatusStyle(string(ev.Outcome)).Render(string(ev.Outcome)))
			}
		}
	}()

	summary, err := run()
	wg.Wait()
	return summary, err
}

func printSummary(w io.Writer, s *services.Summary, check bool) {
	if check {
		var rows []table.Row
		for _, item := range s.Items {
			rows = append(rows, table.Row{
				item.Name.Label(),
				item.Record.Language,
				fmt.Sprintf("%d", item.Record.Pages),
				item.Record.UpdatedAt,
				string(item.Decision),
			})
		}
		columns := []table.Column{
			{Title: "Chapter", Width: 16},
			{Title: "Lang", Width: 6},
			{Title: "Pages", Width: 6},
			{Title: "Updated", Width: 26},
			{Title: "Decision", Width: 20},
		}
		fmt.Fprintln(w, renderTable(columns, rows))
	}

	decisions := make([]string, 0, len(s.Decisions))
	for d, n := range s.Decisions {
		decisions = append(decisions, fmt.Sprintf("%s %d", d, n))
	}
	slices.Sort(decisions)

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(s.Manga.Name))
	b.WriteString("\n")
	b.WriteString(styles.MutedStyle.Render(s.Folder))
	b.WriteString("\n\n")
	b.WriteString(styles.TextStyle.Render(strings.Join(decisions, " • ")))
	b.WriteString("\n")
	if !check {
		b.WriteString(styles.StatusCompleted.Render(fmt.Sprintf("%d downloaded", s.Downloaded)))
		if s.Incomplete > 0 {
			b.WriteString("  ")
			b.WriteString(styles.StatusWarning.Render(fmt.Sprintf("%d incomplete", s.Incomplete)))
		}
		b.WriteString("\n")
	}
	b.WriteString(styles.MutedStyle.Render(fmt.Sprintf("took %s", s.Elapsed.Round(time.Millisecond))))

	fmt.Fprintln(w, styles.CardStyle.Render(b.String()))
}
