package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/coverme/internal/detect"
	"github.com/jonathan/coverme/internal/observability"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the job board registry",
	Long:  "Print the site registry used by site-specific detection, either the built-in one or a custom registry file after validation.",
	RunE:  runSites,
}

var (
	sitesRegistry string
	sitesJSON     bool
)

func init() {
	sitesCmd.Flags().StringVar(&sitesRegistry, "registry", "", "Custom site registry JSON file")
	sitesCmd.Flags().BoolVar(&sitesJSON, "json", false, "Print the registry as JSON")

	rootCmd.AddCommand(sitesCmd)
}

func runSites(cmd *cobra.Command, _ []string) error {
	path := appCfg.Registry
	if cmd.Flags().Changed("registry") {
		path = sitesRegistry
	}

	registry := detect.DefaultRegistry()
	if path != "" {
		r, err := detect.LoadRegistryFile(path)
		if err != nil {
			return err
		}
		registry = r
	}

	if sitesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(registry.Entries())
	}
	observability.NewPrinter(os.Stdout).PrintRegistry(registry.Entries())
	return nil
}
