package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/tokend/internal/tokend/app"
	"github.com/aussiebroadwan/tokend/pkg/slogx"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify configuration, database and signing key without serving",
		Long: "check runs the startup verification of serve and exits. It creates the database and\n" +
			"applies pending migrations like serve does, but never generates a signing key.",
		Example: strings.TrimSpace(`
# Verify a file backed key
AUTH_SIGNING_KEY_FILE=/etc/tokend/signing.pem tokend check

# Verify persistent keys
AUTH_KEY_SOURCE=persistent AUTH_MASTER_KEY_PATH=/etc/tokend/master.key tokend check
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}

			results, err := app.Check(cmd.Context(), cfg, slogx.Discard())
			out := cmd.OutOrStdout()
			for _, r := range results {
				status := "ok"
				if !r.OK() {
					status = "FAIL"
				}
				line := fmt.Sprintf("%-14s %s", r.Name, status)
				switch {
				case r.Err != nil:
					line += "  " + r.Err.Error()
				case r.Detail != "":
					line += "  " + r.Detail
				}
				fmt.Fprintln(out, line)
			}
			return err
		},
	}
}
