// Owera turns a plain-language application description into a generated
// project by running a team of model-backed workers through a feature
// lifecycle.
//
// Usage:
//
//	# Generate offline with the scripted model
//	owera run --offline "A todo app with user authentication"
//
//	# Read the description from a file and watch the run
//	owera run --file app.yaml --tui
//
//	# Serve the HTTP API
//	owera serve
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	offline    bool
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received %v, shutting down\n", sig)
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "owera",
		Short: "Generate applications from a plain-language description",
		Long: `owera parses an application description into features and drives each
feature through design, implementation, testing and review with model-backed
workers. The result is written as a project tree and committed to git.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ~/.config/owera/config.yaml)")
	root.PersistentFlags().BoolVar(&flags.offline, "offline", false, "use the scripted offline model")

	root.AddCommand(
		newRunCmd(flags),
		newParseCmd(flags),
		newServeCmd(flags),
		newMCPCmd(flags),
		newWatchCmd(flags),
		newStatusCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "owera by Fyrsmith Labs\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}
