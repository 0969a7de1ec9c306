// Package methodmain holds the bootstrap logic shared by all three
// worker binaries: resolving the optional local config file, seeding the
// Store from it, gating each component's debug logging before the
// protocol loop starts, and the Run entry points themselves, so the
// standalone and dispatcher binaries can share one implementation instead
// of one main package importing another.
package methodmain

import (
	"context"
	"os"

	"github.com/sabrina905990/apt/internal/logger"
	"github.com/sabrina905990/apt/pkg/acquire"
	"github.com/sabrina905990/apt/pkg/config"
	"github.com/sabrina905990/apt/pkg/fsutil"
	"github.com/sabrina905990/apt/pkg/gpgverify"
	"github.com/sabrina905990/apt/pkg/httpfetch"
)

// Options carries the handful of local, non-protocol flags the cobra
// wrappers expose for manual invocation. They only seed the Store's
// initial state; the wire protocol's own Configuration message always
// wins.
type Options struct {
	Debug      bool
	ConfigPath string
}

// defaultConfigPath resolves $APT_METHOD_CONFIG, else the user's config
// directory (~/.config/apt-method/config.yaml on Linux).
func defaultConfigPath() string {
	path, err := fsutil.DefaultConfigPath()
	if err != nil {
		return ""
	}
	return path
}

// LoadStore builds a Store from built-in defaults and, if present, the
// local YAML file, applies any --debug override, and gates each
// component's logger accordingly. The protocol's own 601 Configuration
// message is applied later, by acquire.Method.Configuration, and always
// takes precedence over anything loaded here.
func LoadStore(opts Options) *config.Store {
	store := config.DefaultStore()

	path := opts.ConfigPath
	if path == "" {
		path = defaultConfigPath()
	}
	if path != "" {
		if fd, err := config.LoadFile(path); err == nil {
			fd.Apply(store)
		}
	}

	if opts.Debug {
		store.Set("Debug::Acquire::http", "true")
		store.Set("Debug::Acquire::gpgv", "true")
	}

	logger.SetDebug(logger.ComponentHTTP, store.FindB("Debug::Acquire::http", false))
	logger.SetDebug(logger.ComponentGPGV, store.FindB("Debug::Acquire::gpgv", false))

	return store
}

// RunHTTP wires together the protocol core and the HTTP worker and drives
// the request loop to completion. Shared by cmd/apt-method-http and the
// "apt-method http" subcommand.
func RunHTTP(opts Options) error {
	store := LoadStore(opts)
	log := logger.For(logger.ComponentHTTP)

	httpfetch.InstallSignalHandler()
	acquire.DropPrivileges(log)

	m := acquire.NewMethod("http", "1.2", os.Stdin, os.Stdout, store, log)
	if err := m.Capabilities(true, true, false); err != nil {
		return err
	}

	worker := httpfetch.NewWorker(store, log)
	return m.Run(context.Background(), worker)
}

// RunGPGV wires together the protocol core and the verification worker
// and drives the request loop to completion. Shared by
// cmd/apt-method-gpgv and the "apt-method gpgv" subcommand.
func RunGPGV(opts Options) error {
	store := LoadStore(opts)
	log := logger.For(logger.ComponentGPGV)

	acquire.DropPrivileges(log)

	m := acquire.NewMethod("gpgv", "1.0", os.Stdin, os.Stdout, store, log)
	if err := m.Capabilities(true, true, false); err != nil {
		return err
	}

	verifier := gpgverify.NewVerifier(store, log)
	return m.Run(context.Background(), verifier)
}
