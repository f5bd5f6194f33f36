package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/configsync/configsync/internal/client"
)

var registerRole string

var registerCmd = &cobra.Command{
	Use:   "register <username> <email>",
	Short: "Create a new account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}

		user, err := apiClient().Register(cmd.Context(), &client.RegisterRequest{
			Username: args[0],
			Email:    args[1],
			Password: password,
			Role:     registerRole,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(user)
			return nil
		}
		fmt.Printf("Registered %s (%s) with %s privileges\n", user.Username, user.Email, user.Role)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and save the session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}

		// Log in with a bare client; any stale saved token is irrelevant.
		token, err := client.New(serverURL, "").Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		if err := saveSession(Session{URL: serverURL, Username: args[0], Token: token}); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}

		fmt.Printf("Logged in as %s\n", args[0])
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the current session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if activeSessionToken() == "" {
			return fmt.Errorf("not logged in")
		}
		if err := apiClient().Logout(cmd.Context()); err != nil {
			return err
		}
		if err := clearSession(); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
		fmt.Println("Logged out")
		return nil
	},
}

// promptPassword reads a password without echo when stdin is a terminal,
// falling back to a plain line read (for piped input).
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func init() {
	registerCmd.Flags().StringVar(&registerRole, "role", "user", "account role (user or admin)")
}
