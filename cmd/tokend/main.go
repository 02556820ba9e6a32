package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/tokend/internal/tokend/app"
	"github.com/aussiebroadwan/tokend/pkg/slogx"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tokend:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serve := newServeCommand()
	cmd := &cobra.Command{
		Use:           "tokend",
		Short:         "OAuth2 password grant token service",
		Long:          "tokend issues signed JWT access tokens for the OAuth2 resource owner password grant.\nWithout a subcommand it runs the HTTP service.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	cmd.AddCommand(
		serve,
		newCheckCommand(),
		newUsersCommand(),
		newKeysCommand(),
		newVersionCommand(),
	)
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			application, err := app.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			return application.Run()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tokend version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "tokend %s\n", app.BuildVersion)
			return err
		},
	}
}

// openAdmin is the shared preamble of the operator commands. Their logs go
// to stderr so command output stays parseable.
func openAdmin(cmd *cobra.Command) (*app.Admin, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := slogx.New(slogx.Config{
		Service: "tokend",
		Version: app.BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  "text",
		Output:  cmd.ErrOrStderr(),
	})
	return app.OpenAdmin(cfg, logger)
}
