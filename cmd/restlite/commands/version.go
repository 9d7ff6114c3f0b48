package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build metadata, injected with -ldflags. Both the root command's --version
// output and the version subcommand read from here.
var (
	Version = "dev"
	Commit  = "unknown"
)

// VersionString is the one-line form used by the root command.
func VersionString() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("restlite %s\n", VersionString())
			fmt.Printf("  go:      %s\n", runtime.Version())
			fmt.Printf("  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
