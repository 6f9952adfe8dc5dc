package cmd

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kerbaras/mdown/pkg/app/styles"
	"github.com/kerbaras/mdown/pkg/integrations"
	"github.com/kerbaras/mdown/pkg/sources"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newEpubCmd(v *viper.Viper, version string) *cobra.Command {
	var (
		output  string
		profile string
	)

	cmd := &cobra.Command{
		Use:   "epub <manga-name>",
		Short: "Bundle downloaded chapters of a manga into an EPUB",
		Long: `Bundle every downloaded chapter archive of a manga into one EPUB, ordered by volume and chapter.

With --profile pages are resized and re-encoded for an e-reader screen.`,
		Args: cobra.ExactArgs(1),
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

			name := args[0]
			mwd := filepath.Join(rt.cfg.Folder, sources.MangaFolderName(name))
			if entry, ok := ledger.Manga(name); ok && entry.MWD != "" {
				mwd = entry.MWD
			}

			archives, err := filepath.Glob(filepath.Join(mwd, "*.cbz"))
			if err != nil {
				return err
			}
			if len(archives) == 0 {
				return fmt.Errorf("no chapter archives in %s", mwd)
			}

			if output == "" {
				output = rt.cfg.Folder
			}
			builder := integrations.NewEPubBuilder(output)
			if profile != "" {
				opts, ok := integrations.Profiles[profile]
				if !ok {
					return fmt.Errorf("unknown profile %q, available: %s", profile, strings.Join(slices.Sorted(maps.Keys(integrations.Profiles)), ", "))
				}
				builder = builder.WithProfile(opts)
			}

			rt.log.Info().Str("manga", name).Int("archives", len(archives)).Str("profile", profile).Msg("building epub")
			path, stats, err := builder.CreateEPub(name, archives)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, styles.StatusCompleted.Render("EPUB created: "+path))
			fmt.Fprintln(out, styles.MutedStyle.Render(fmt.Sprintf("%d chapters, %d pages", stats.Chapters, stats.Pages)))
			if stats.Skipped > 0 {
				fmt.Fprintln(out, styles.StatusWarning.Render(fmt.Sprintf("%d unreadable pages skipped", stats.Skipped)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "O", "", "Directory to write the EPUB to (default download folder)")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Device profile (kindle, kindle-paperwhite, kindle-oasis, kobo-clara, tablet)")

	return cmd
}
