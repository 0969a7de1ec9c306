// Command apt-method-http is the HTTP acquire method: with no arguments
// it speaks the stdio protocol exactly like a real apt method, reading
// 601/600 messages from stdin and writing 100/101/102/200/201/400/401
// replies to stdout. The --debug and --config flags exist only for
// manual, non-apt-driven invocation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sabrina905990/apt/internal/methodmain"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "apt-method-http: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts methodmain.Options

	cmd := &cobra.Command{
		Use:          "apt-method-http",
		Short:        "HTTP acquire method for apt",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return methodmain.RunHTTP(opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "enable debug logging for this run")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to a local YAML defaults file")

	return cmd
}
