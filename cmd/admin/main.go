package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"graph-mailer/internal/config"
	"graph-mailer/internal/db"
	"graph-mailer/internal/logger"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "admin",
		Short:        "Manage the mailer send log database",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file with DB_DRIVER and DB_DSN")

	var log *zap.Logger
	var client *db.Client
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %s not found, reading configuration from environment\n", envFile)
		}

		rt := config.LoadRuntime()
		l, err := logger.New(logger.Config{Level: rt.LogLevel, Format: rt.LogFormat})
		if err != nil {
			return errors.Wrap(err, "failed to build logger")
		}
		log = l

		dbCfg, err := db.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load database configuration")
		}
		client, err = db.NewClient(dbCfg.Driver, dbCfg.DSN)
		if err != nil {
			return errors.Wrap(err, "failed to connect to database")
		}
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if client != nil {
			client.Close()
		}
		if log != nil {
			log.Sync()
		}
	}

	root.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the send log table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.Migrate(cmd.Context(), log)
		},
	})

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent sends",
		RunE: func(cmd *cobra.Command, args []string) error {
			outcomes, err := client.RecentOutcomes(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(outcomes) == 0 {
				fmt.Println("No sends recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTIME\tSENDER\tTO\tMODE\tSTATUS\tCODE\tSUBJECT")
			fmt.Fprintln(w, "--\t----\t------\t--\t----\t------\t----\t-------")
			for _, o := range outcomes {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					o.ID,
					o.CreatedAt.Local().Format(time.DateTime),
					o.Sender,
					strings.Join(o.Recipients, ","),
					o.AuthMode,
					o.Status,
					o.StatusCode,
					o.Subject,
				)
			}
			return w.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "number of rows to show")
	root.AddCommand(list)

	return root
}
