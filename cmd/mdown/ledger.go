package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/kerbaras/mdown/pkg/app"
	"github.com/kerbaras/mdown/pkg/app/styles"
	"github.com/kerbaras/mdown/pkg/data"
	"github.com/kerbaras/mdown/pkg/services"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newLedgerCmd(v *viper.Viper, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and refresh every downloaded manga",
		Long: `The ledger records each downloaded manga, the folder it lives in and its chapters.

check and update walk every manga in the ledger using its stored folder and language.
Manga whose folder no longer exists are dropped from the ledger.`,
	}

	cmd.AddCommand(newLedgerListCmd(v, version))
	cmd.AddCommand(newLedgerRunCmd(v, version, "check", "Show what changed remotely for every manga", true))
	cmd.AddCommand(newLedgerRunCmd(v, version, "update", "Download new and superseded chapters for every manga", false))

	return cmd
}

func newLedgerListCmd(v *viper.Viper, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "list [manga-name]",
		Short: "List manga in the ledger, or the chapters of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(v, version, false)
			if err != nil {
				return err
			}
			defer rt.close()

			ledger, err := rt.openLedger()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				entry, ok := ledger.Manga(args[0])
				if !ok {
					return fmt.Errorf("%q is not in the ledger", args[0])
				}
				printLedgerEntry(out, entry)
				return nil
			}

			doc := ledger.Document()
			if len(doc.Data) == 0 {
				fmt.Fprintln(out, styles.MutedStyle.Render("The ledger is empty."))
				return nil
			}

			columns := []table.Column{
				{Title: "Name", Width: 32},
				{Title: "Lang", Width: 6},
				{Title: "Chapters", Width: 9},
				{Title: "Cover", Width: 6},
				{Title: "Folder", Width: 40},
			}
			rows := make([]table.Row, 0, len(doc.Data))
			for _, m := range doc.Data {
				rows = append(rows, table.Row{
					truncateString(m.Name, 30),
					m.Language,
					fmt.Sprintf("%d", len(m.Chapters)),
					fmt.Sprintf("%t", m.Cover),
					truncateString(m.MWD, 38),
				})
			}
			fmt.Fprintf(out, "\n%s\n\n", styles.TitleStyle.Render(fmt.Sprintf("Ledger (%d manga)", len(doc.Data))))
			fmt.Fprintln(out, renderTable(columns, rows))
			return nil
		},
	}
}

func printLedgerEntry(w io.Writer, m data.MangaLedger) {
	fmt.Fprintln(w, styles.TitleStyle.Render(m.Name))
	fmt.Fprintln(w, styles.MutedStyle.Render(fmt.Sprintf("id %s • folder %s • language %s • cover %t", m.ID, m.MWD, m.Language, m.Cover)))

	rows := make([]table.Row, 0, len(m.Chapters))
	for _, ch := range m.Chapters {
		rows = append(rows, table.Row{ch.Number, ch.UpdatedAt, ch.ID})
	}
	columns := []table.Column{
		{Title: "Chapter", Width: 9},
		{Title: "Updated", Width: 26},
		{Title: "ID", Width: 38},
	}
	fmt.Fprintln(w, renderTable(columns, rows))
}

func newLedgerRunCmd(v *viper.Viper, version, use, short string, check bool) *cobra.Command {
	var plain, force bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interactive := !check && !plain
			rt, err := newRuntime(v, version, interactive)
			if err != nil {
				return err
			}
			defer rt.close()

			cfg := rt.cfg
			controller, err := newController(rt)
			if err != nil {
				return err
			}

			opts := services.RunOptions{
				ReconcileOptions: services.ReconcileOptions{
					Language: cfg.Language,
					Force:    force,
					Update:   !check,
					Saver:    cfg.Saver,
				},
				Check: check,
			}

			ctx, stop := context.WithCancel(cmd.Context())
			defer stop()

			pc := services.NewPipelineContext(rt.log)
			pc.Saver = cfg.Saver
			pc.Update = !check

			var runs []services.LedgerRun
			run := func() (*services.Summary, error) {
				defer pc.CloseEvents()
				var err error
				runs, err = controller.RunLedger(ctx, pc, opts)
				return nil, err
			}

			errOut := cmd.ErrOrStderr()
			if interactive {
				_, err = app.NewApp(pc, run, stop).Run()
			} else {
				_, err = runPlain(pc, run, errOut, !check)
			}

			out := cmd.OutOrStdout()
			for _, r := range runs {
				switch {
				case r.Missing:
					fmt.Fprintln(out, styles.StatusWarning.Render(fmt.Sprintf("%s: %s not found, removed from ledger", r.Entry.Name, r.Entry.MWD)))
				case r.Summary != nil:
					printSummary(out, r.Summary, check)
				}
			}
			if pc.Suspended.Len() > 0 {
				fmt.Fprintln(errOut, styles.StatusError.Render(fmt.Sprintf("%d errors during run:", pc.Suspended.Len())))
				pc.Suspended.Print(errOut)
			}
			if err != nil {
				return fmt.Errorf("ledger %s: %w", use, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Plain progress output instead of the terminal UI")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Download chapters even if they already exist or are locked")
	if check {
		cmd.Long = strings.TrimSpace(`
Reconcile every manga in the ledger against MangaDex without downloading anything.
Superseded chapters are reported and dropped from the ledger.`)
	}

	return cmd
}
