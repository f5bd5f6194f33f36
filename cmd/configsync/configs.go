package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// ownerFlag is the admin-only tenant filter shared by config commands.
var ownerFlag int64

// ownerArg converts the --owner flag into the optional query value.
func ownerArg() *int64 {
	if ownerFlag <= 0 {
		return nil
	}
	return &ownerFlag
}

var getCmd = &cobra.Command{
	Use:   "get <service>",
	Short: "Show the current configuration of a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := apiClient().GetConfig(cmd.Context(), args[0], ownerArg())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(cfg)
			return nil
		}
		printConfig(cfg)
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <service> <payload-json>",
	Short: "Create or replace a service configuration (records a new version)",
	Long: `Create or replace a service configuration. The payload is a JSON
document, passed inline or with @file to read from a file ("-" for stdin).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayloadArg(args[1])
		if err != nil {
			return err
		}
		if !json.Valid(payload) {
			return fmt.Errorf("payload is not valid JSON")
		}

		cfg, err := apiClient().SetConfig(cmd.Context(), args[0], payload, ownerArg())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(cfg)
			return nil
		}
		printConfig(cfg)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible service configurations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configs, err := apiClient().ListConfigs(cmd.Context(), ownerArg())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(configs)
			return nil
		}
		printConfigList(configs)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <service>",
	Short: "Delete a service configuration (history is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient().DeleteConfig(cmd.Context(), args[0], ownerArg()); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions <service>",
	Short: "List the version history of a service, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		versions, err := apiClient().ListVersions(cmd.Context(), args[0], ownerArg())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(versions)
			return nil
		}
		printVersionList(versions)
		return nil
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <service> <version-id>",
	Short: "Restore a historical version as a new version",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		versionID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("version-id must be an integer: %w", err)
		}

		cfg, err := apiClient().Rollback(cmd.Context(), args[0], versionID, ownerArg())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(cfg)
			return nil
		}
		fmt.Printf("Rolled back %s to version id %d\n", args[0], versionID)
		printConfig(cfg)
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <service> <from-version-id> <to-version-id>",
	Short: "Compare two stored versions of a service",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("from-version-id must be an integer: %w", err)
		}
		to, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("to-version-id must be an integer: %w", err)
		}

		result, err := apiClient().Diff(cmd.Context(), args[0], from, to, ownerArg())
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(result)
			return nil
		}
		printDiff(result)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := apiClient().Health(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	},
}

// readPayloadArg resolves a payload argument: inline JSON, @file, or @- for
// stdin.
func readPayloadArg(arg string) ([]byte, error) {
	if len(arg) > 0 && arg[0] == '@' {
		name := arg[1:]
		if name == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			return data, nil
		}
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		return data, nil
	}
	return []byte(arg), nil
}

func init() {
	for _, cmd := range []*cobra.Command{getCmd, setCmd, listCmd, deleteCmd, versionsCmd, rollbackCmd, diffCmd} {
		cmd.Flags().Int64Var(&ownerFlag, "owner", 0, "target owner id (admin only)")
	}
}
