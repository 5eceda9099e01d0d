package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	serverURL  string
	orgID      string
	jsonOutput bool

	client *apiClient
)

func defaultServer() string {
	if s := os.Getenv("HOOKRELAY_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

func defaultOrg() string {
	if s := os.Getenv("HOOKRELAY_ORG"); s != "" {
		return s
	}
	return "org_demo"
}

var rootCmd = &cobra.Command{
	Use:          "hookctl",
	Short:        "CLI client for the hookrelay webhook service",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		client = newAPIClient(strings.TrimRight(serverURL, "/"), orgID)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "hookrelay API base URL")
	rootCmd.PersistentFlags().StringVar(&orgID, "org", defaultOrg(), "organization id sent as X-Organization-Id")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(deliveriesCmd)
	rootCmd.AddCommand(raiseCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
