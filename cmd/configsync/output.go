package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/configsync/configsync/internal/configstore"
	"github.com/configsync/configsync/internal/model"
	"github.com/configsync/configsync/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printConfig(cfg *model.ServiceConfig) {
	fmt.Printf("Service:    %s\n", cfg.Name)
	fmt.Printf("Owner:      %d\n", cfg.OwnerID)
	fmt.Printf("Updated At: %s\n", cfg.UpdatedAt.Format("2006-01-02 15:04:05"))

	pretty, err := json.MarshalIndent(cfg.Payload, "", "  ")
	if err != nil {
		fmt.Printf("Payload:    %s\n", cfg.Payload)
		return
	}
	fmt.Printf("Payload:\n%s\n", pretty)
}

func printConfigList(configs []*model.ServiceConfig) {
	if len(configs) == 0 {
		fmt.Println("No configs found")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tOWNER\tUPDATED")
	for _, c := range configs {
		fmt.Fprintf(w, "%s\t%d\t%s\n", c.Name, c.OwnerID, c.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}

func printVersionList(versions []*model.ConfigVersion) {
	if len(versions) == 0 {
		fmt.Println("No versions found")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVERSION\tOWNER\tCREATED")
	for _, v := range versions {
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\n", v.ID, v.Version, v.OwnerID, v.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}

func printDiff(result *configstore.DiffResult) {
	fmt.Printf("%s: version %d -> %d\n", result.Service, result.VersionA, result.VersionB)
	if result.Diff.Empty() {
		fmt.Println(ui.RenderMuted("No differences"))
		return
	}

	for _, path := range sortedKeys(result.Diff.Added) {
		fmt.Println(ui.RenderAdded(fmt.Sprintf("+ %s = %s", path, renderValue(result.Diff.Added[path]))))
	}
	for _, path := range sortedKeys(result.Diff.Removed) {
		fmt.Println(ui.RenderRemoved(fmt.Sprintf("- %s = %s", path, renderValue(result.Diff.Removed[path]))))
	}
	changedPaths := make([]string, 0, len(result.Diff.Changed))
	for path := range result.Diff.Changed {
		changedPaths = append(changedPaths, path)
	}
	sort.Strings(changedPaths)
	for _, path := range changedPaths {
		c := result.Diff.Changed[path]
		fmt.Println(ui.RenderChanged(fmt.Sprintf("~ %s: %s -> %s", path, renderValue(c.Old), renderValue(c.New))))
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func renderValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
