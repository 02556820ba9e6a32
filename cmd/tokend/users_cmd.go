package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage resource owner credentials",
	}
	cmd.AddCommand(newUsersAddCommand(), newUsersPasswdCommand())
	return cmd
}

func newUsersAddCommand() *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Example: strings.TrimSpace(`
printf '%s' "$PASSWORD" | tokend users add --username alice --password-stdin
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}
			admin, err := openAdmin(cmd)
			if err != nil {
				return err
			}
			defer admin.Close()

			user, err := admin.AddUser(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Username, user.ID)
			return err
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username of the new user")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newUsersPasswdCommand() *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Replace a user's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}
			admin, err := openAdmin(cmd)
			if err != nil {
				return err
			}
			defer admin.Close()

			if err := admin.SetPassword(cmd.Context(), username, password); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "updated password for %s\n", username)
			return err
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username to update")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

// readPassword takes the first line of stdin. Passwords are never accepted
// as flags so they stay out of shell history and process listings.
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if !fromStdin {
		return "", errors.New("--password-stdin is required")
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password on stdin")
	}
	return password, nil
}
