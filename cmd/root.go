package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
)

// rootCmd represents the base command for the muster gateway.
var rootCmd = &cobra.Command{
	Use:   "muster",
	Short: "Multi-tenant MCP server orchestrator and proxy",
	Long: `muster aggregates one or more child MCP servers behind per-project
SSE endpoints, namespacing their tools into a single unified session when
a project opts in.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main with
// the build-time version string.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the CLI entry point, called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "muster version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
}
