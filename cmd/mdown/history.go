package cmd

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/kerbaras/mdown/pkg/app/styles"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newHistoryCmd(v *viper.Viper, version string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [manga-name]",
		Short: "Show recent chapter downloads",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(v, version, false)
			if err != nil {
				return err
			}
			defer rt.close()

			history, err := rt.openHistory()
			if err != nil {
				return err
			}

			var manga string
			if len(args) == 1 {
				manga = args[0]
			}
			entries, err := history.List(cmd.Context(), manga, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, styles.MutedStyle.Render("No downloads recorded yet."))
				return nil
			}

			columns := []table.Column{
				{Title: "When", Width: 19},
				{Title: "Manga", Width: 30},
				{Title: "Chapter", Width: 8},
				{Title: "Outcome", Width: 10},
				{Title: "Pages", Width: 6},
				{Title: "Error", Width: 30},
			}
			rows := make([]table.Row, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, table.Row{
					e.RecordedAt.Local().Format("2006-01-02 15:04:05"),
					truncateString(e.MangaName, 28),
					e.ChapterNumber,
					e.Outcome,
					fmt.Sprintf("%d", e.Pages),
					truncateString(e.Error, 28),
				})
			}

			fmt.Fprintln(out, renderTable(columns, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of entries to show")

	return cmd
}
