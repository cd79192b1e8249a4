// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package commands implements the ncxsh command tree.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	ncx "github.com/netascode/go-ncx"
)

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	configFile    string
	logLevel      string
	scriptPaths   []string
	schemaFiles   []string
	gnmiTarget    string
	netconfTarget string
	username      string
	password      string
	insecure      bool
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, date string) error {
	return newRootCommand(version, commit, date).ExecuteContext(ctx)
}

func newRootCommand(version, commit, date string) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "ncxsh",
		Short: "NETCONF shell script runner",
		Long: `ncxsh runs scripts of rpc commands, variable assignments and
if/while blocks against a gNMI or NETCONF device.

Without a configured device, rpc input trees are printed instead of sent.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error, none)")
	flags.StringSliceVar(&opts.scriptPaths, "script-path", nil, "directory searched for scripts (repeatable)")
	flags.StringSliceVar(&opts.schemaFiles, "schema", nil, "YAML template descriptor file (repeatable)")
	flags.StringVar(&opts.gnmiTarget, "gnmi", "", "gNMI target address")
	flags.StringVar(&opts.netconfTarget, "netconf", "", "NETCONF target address")
	flags.StringVarP(&opts.username, "username", "u", "", "device username")
	flags.StringVarP(&opts.password, "password", "p", "", "device password")
	flags.BoolVar(&opts.insecure, "insecure", false, "skip TLS and host key verification")

	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newExecCommand(opts))
	rootCmd.AddCommand(newParseCommand(opts))
	rootCmd.AddCommand(newCheckCommand(opts))

	return rootCmd
}

// loadConfig reads the configuration file, if any, and applies the flag
// overrides on top of it
func (o *globalOptions) loadConfig() (*ncx.Config, error) {
	cfg := ncx.DefaultConfig()
	if o.configFile != "" {
		var err error
		if cfg, err = ncx.LoadConfig(o.configFile); err != nil {
			return nil, err
		}
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	cfg.ScriptPaths = append(cfg.ScriptPaths, o.scriptPaths...)
	cfg.SchemaFiles = append(cfg.SchemaFiles, o.schemaFiles...)

	if o.gnmiTarget != "" {
		if cfg.GNMI == nil {
			cfg.GNMI = &ncx.TransportConfig{}
		}
		cfg.GNMI.Target = o.gnmiTarget
	}
	if o.netconfTarget != "" {
		if cfg.NETCONF == nil {
			cfg.NETCONF = &ncx.TransportConfig{}
		}
		cfg.NETCONF.Target = o.netconfTarget
	}
	for _, tc := range []*ncx.TransportConfig{cfg.GNMI, cfg.NETCONF} {
		if tc == nil {
			continue
		}
		if o.username != "" {
			tc.Username = o.username
		}
		if o.password != "" {
			tc.Password = o.password
		}
		if o.insecure {
			tc.SkipVerify = true
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads the configuration and builds the logger writing to w
func (o *globalOptions) setup(w io.Writer) (*ncx.Config, ncx.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(w, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
