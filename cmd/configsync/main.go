package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/configsync/configsync/internal/client"
	"github.com/configsync/configsync/internal/ui"
)

var (
	serverURL  string
	jsonOutput bool
)

func defaultServer() string {
	if s := os.Getenv("CONFIGSYNC_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

// apiClient returns a client for the target server using the saved session
// token, if any.
func apiClient() *client.Client {
	return client.New(serverURL, activeSessionToken())
}

var rootCmd = &cobra.Command{
	Use:   "configsync",
	Short: "CLI client for the configsync service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "server base URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
