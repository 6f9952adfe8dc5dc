package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRootCmd(version string) *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "mdown",
		Short: "Download manga chapters from MangaDex",
		Long: `mdown downloads every chapter of a manga from MangaDex into one .cbz archive per chapter.

It remembers what it already fetched, so running it again only picks up new or updated chapters.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default $XDG_CONFIG_HOME/mdown/config.yaml)")
	flags.StringP("folder", "o", "", "Folder manga are downloaded into")
	flags.String("cache-dir", "", "Folder for in-progress chapters and lock files")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (pretty, json)")
	flags.String("log-file", "", "Write logs to this file")

	_ = v.BindPFlag("folder", flags.Lookup("folder"))
	_ = v.BindPFlag("cache_dir", flags.Lookup("cache-dir"))
	_ = v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = v.BindPFlag("logging.file", flags.Lookup("log-file"))

	cmd.AddCommand(newDownloadCmd(v, version))
	cmd.AddCommand(newLedgerCmd(v, version))
	cmd.AddCommand(newHistoryCmd(v, version))
	cmd.AddCommand(newResourcesCmd(v, version))
	cmd.AddCommand(newEpubCmd(v, version))
	cmd.AddCommand(newConfigCmd(v))

	return cmd
}
