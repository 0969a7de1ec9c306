// Command apt-method dispatches to either acquire method from one built
// artifact, for convenience during development: "apt-method http" and
// "apt-method gpgv" behave exactly like the two dedicated binaries.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sabrina905990/apt/internal/methodmain"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "apt-method: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "apt-method",
		Short:        "Run an apt acquire method",
		SilenceUsage: true,
	}

	cmd.AddCommand(newHTTPCmd(), newGPGVCmd())
	return cmd
}

func newHTTPCmd() *cobra.Command {
	var opts methodmain.Options
	cmd := &cobra.Command{
		Use:   "http",
		Short: "Run the HTTP acquire method",
		RunE: func(cmd *cobra.Command, args []string) error {
			return methodmain.RunHTTP(opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "enable debug logging for this run")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to a local YAML defaults file")
	return cmd
}

func newGPGVCmd() *cobra.Command {
	var opts methodmain.Options
	cmd := &cobra.Command{
		Use:   "gpgv",
		Short: "Run the signature verification acquire method",
		RunE: func(cmd *cobra.Command, args []string) error {
			return methodmain.RunGPGV(opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "enable debug logging for this run")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to a local YAML defaults file")
	return cmd
}
