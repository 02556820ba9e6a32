package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/tokend/internal/tokend/domain"
)

func newKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect and rotate signing keys",
	}
	cmd.AddCommand(newKeysListCommand(), newKeysRotateCommand())
	return cmd
}

func newKeysListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List signing keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := openAdmin(cmd)
			if err != nil {
				return err
			}
			defer admin.Close()

			keys, err := admin.ListKeys(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KID\tALG\tSTATUS\tCREATED\tEXPIRES")
			now := time.Now()
			for _, k := range keys {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					k.Kid, k.Algorithm, keyStatus(k, now), formatTime(&k.CreatedAt), formatTime(k.ExpiresAt))
			}
			return tw.Flush()
		},
	}
}

func newKeysRotateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Generate a new active key and retire the current one",
		Long: "Generates a new persistent signing key and retires the active one. Retired keys stay\n" +
			"in the JWKS until AUTH_KEY_GRACE_PERIOD ends. Running servers pick up the new key on restart.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			admin, err := openAdmin(cmd)
			if err != nil {
				return err
			}
			defer admin.Close()

			res, err := admin.RotateKey(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "active key %s (%s)\n", res.NewKey.Kid, res.NewKey.Algorithm)
			for _, k := range res.RetiredKeys {
				fmt.Fprintf(out, "retired key %s, published until %s\n", k.Kid, formatTime(k.ExpiresAt))
			}
			return nil
		},
	}
}

func keyStatus(k domain.SigningKey, now time.Time) string {
	switch {
	case k.IsActive():
		return "active"
	case k.IsExpired(now):
		return "expired"
	}
	return "retired"
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
