// Command blaster runs contact normalization and blasts from the terminal, without the API server.
package main

import (
	"fmt"
	"os"

	"wa-blaster/config"
	"wa-blaster/internal/logx"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type app struct {
	envFile   string
	logLevel  string
	logFormat string

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "blaster",
		Short: "Bulk message sender driving logged-in web chat sessions",
		Long: `blaster normalizes contact lists and sends messages and attachments to every
number through the browser profiles found under BLAST_USER_PATH/<platform>.

Configuration comes from the environment (and .env), the same keys the API server reads.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.envFile != "" {
				if err := godotenv.Load(a.envFile); err != nil {
					return fmt.Errorf("load %s: %w", a.envFile, err)
				}
			} else {
				_ = godotenv.Load()
			}

			a.cfg = config.Load()
			level, format := a.cfg.LogLevel, a.cfg.LogFormat
			if a.logLevel != "" {
				level = a.logLevel
			}
			if a.logFormat != "" {
				format = a.logFormat
			}
			a.log = logx.NewWithWriter(cmd.ErrOrStderr(), level, format)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env", "", "path to a .env file (default: ./.env when present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level, overrides LOG_LEVEL")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "console or json, overrides LOG_FORMAT")

	root.AddCommand(newNormalizeCmd(a), newRunCmd(a))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
