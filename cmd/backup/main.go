package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/semmidev/pgstash/internal/app"
	"github.com/semmidev/pgstash/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stderr)
	cancel()
	os.Exit(code)
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return app.ExitCode(err)
	}
	return app.ExitOK
}

func newRootCmd() *cobra.Command {
	var (
		logLevel  string
		keepLocal bool
	)

	cmd := &cobra.Command{
		Use:   "pgstash <config-file>",
		Short: "Dump a PostgreSQL database, gzip it and upload it to an S3 bucket",
		Long: `pgstash runs pg_dump against the database described in an INI config file,
compresses the output with gzip and uploads it as <prefix>_YYYYMMDD_HHMMSS_<offset>.sql.gz,
creating the bucket when it does not exist.

Exit codes: 0 success, 1 usage, 2 config, 3 dump, 4 bucket, 5 upload.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var overrides []config.Override
			if cmd.Flags().Changed("log-level") {
				overrides = append(overrides, config.WithValue("app.log_level", logLevel))
			}
			if cmd.Flags().Changed("keep-local") {
				overrides = append(overrides, config.WithValue("backup.keep_local", keepLocal))
			}

			cfg, err := config.Load(args[0], overrides...)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			application, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			defer application.Shutdown()

			_, err = application.Run(cmd.Context())
			return err
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "override app.log_level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&keepLocal, "keep-local", false, "keep the compressed dump in backup.output_dir after upload")

	return cmd
}
