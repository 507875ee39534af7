package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags).
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "clustergo-example",
	Short: "Demonstrates dispatching a Go function onto a remote cluster",
	Long: `clustergo-example is a thin reference binary built on pkg/dispatch.

It wraps a small demonstration function and submits it against whichever
cluster target the flags describe, local, SSH, a batch scheduler, or
Kubernetes, printing the result or the remote failure it got back.`,
	Version: version,
	Example: `  # Run the demo function in-process
  clustergo-example run --a 2 --b 3

  # Submit it to a SLURM cluster over SSH
  clustergo-example run --a 2 --b 3 --target slurm --host login.cluster.example.com \
    --remote-work-dir /scratch/clustergo --partition gpu --cores 4 --gpus 1 --gpu-type a100

  # Show version
  clustergo-example version`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("clustergo-example version %s (commit: %s, built: %s)\n", version, commit, buildDate))

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet mode (errors only)")
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}

func isQuiet(cmd *cobra.Command) bool {
	quiet, _ := cmd.Flags().GetBool("quiet")
	return quiet
}

func printInfo(cmd *cobra.Command, format string, args ...interface{}) {
	if !isQuiet(cmd) {
		fmt.Fprintf(os.Stdout, format+"\n", args...)
	}
}

func printVerbose(cmd *cobra.Command, format string, args ...interface{}) {
	if isVerbose(cmd) {
		fmt.Fprintf(os.Stdout, "[VERBOSE] "+format+"\n", args...)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
