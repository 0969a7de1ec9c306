// Command apt-method-gpgv is the signature verification acquire method.
// With no arguments it speaks the stdio protocol exactly like a real apt
// method; --debug and --config exist only for manual invocation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sabrina905990/apt/internal/methodmain"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "apt-method-gpgv: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts methodmain.Options

	cmd := &cobra.Command{
		Use:          "apt-method-gpgv",
		Short:        "Signature verification acquire method for apt",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return methodmain.RunGPGV(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "enable debug logging for this run")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to a local YAML defaults file")

	return cmd
}
