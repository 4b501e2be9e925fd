// Package main is the capcluster CLI entry point.
//
// Usage:
//
//	capcluster server [--config path] [--debug]
//	capcluster init <family> <batch-file> [--k n] [--capacities 3,3] [--reset]
//	capcluster add <family> <batch-file> [--refit]
//	capcluster capacities <family> 3,3,4
//	capcluster status [family]
//	capcluster reset <family>
//	capcluster version
//
// Every command except server and version talks to a running server (--server).
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hyperjump/capcluster/internal/cli"
	"github.com/hyperjump/capcluster/internal/config"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/capcluster/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every client command.
type globalFlags struct {
	server string
	output string
}

func (g *globalFlags) format() (cli.OutputFormat, error) {
	return cli.ParseFormat(g.output)
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "capcluster",
		Short:         "Capacity-constrained clustering service for image descriptors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.server, "server", defaultServerURL, "capcluster server URL")
	root.PersistentFlags().StringVarP(&g.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		newServerCmd(),
		newInitCmd(g),
		newAddCmd(g),
		newCapacitiesCmd(g),
		newStatusCmd(g),
		newResetCmd(g),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "capcluster version %s\n", version)
		},
	}
}

// loadConfig loads config from path. When path is the default, a config.yaml in
// the current directory wins; when neither exists the built-in defaults are used.
// It returns the config and the path actually loaded, empty for defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}
