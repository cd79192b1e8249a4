// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/netascode/go-ncx/shell"
)

// openSession creates a shell session wired to the configured device;
// the returned close function ends the session and the device connection
func openSession(cmd *cobra.Command, opts *globalOptions) (*shell.Session, func() error, error) {
	cfg, logger, err := opts.setup(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	cat := newCatalog()
	d, err := newDispatcher(cfg, cat, logger)
	if err != nil {
		return nil, nil, err
	}

	sessOpts := []func(*shell.Session){
		shell.WithConfig(cfg),
		shell.WithCatalog(cat),
		shell.WithOutput(cmd.OutOrStdout()),
		shell.WithLogger(logger),
	}
	if d != nil {
		sessOpts = append(sessOpts, shell.WithDispatcher(d))
	}
	sess, err := shell.NewSession(sessOpts...)
	if err != nil {
		if d != nil {
			_ = d.Close() //nolint:errcheck // session setup already failed
		}
		return nil, nil, err
	}
	closeFn := func() error {
		err := sess.Close()
		if d != nil {
			err = errors.Join(err, d.Close())
		}
		return err
	}
	return sess, closeFn, nil
}

func newRunCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run SCRIPT [ARGS...]",
		Short: "Run a script",
		Long: `Run a script file to completion. Relative names are searched in the
script paths. The arguments are bound to $1..$9; a SCRIPT of "-" reads
the script from standard input.`,
		Example: `  # Run a script with one parameter
  ncxsh run --netconf 192.168.1.1 -u admin -p secret setup.ncx eth0

  # Print the rpc trees of a script without a device
  ncxsh run - < setup.ncx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sess, closeFn, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, closeFn())
			}()

			if args[0] == "-" {
				return sess.Run(cmd.Context(), "stdin", cmd.InOrStdin(), args[1:]...)
			}
			return sess.RunFile(cmd.Context(), args[0], args[1:]...)
		},
	}
}

func newExecCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec LINE...",
		Short: "Run command lines",
		Long: `Run each argument as one command line in a single session, stopping
at the first error.`,
		Example: `  ncxsh exec '$mtu = 9000' 'eval "$mtu + 1"'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sess, closeFn, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, closeFn())
			}()

			for _, line := range args {
				if err := sess.Exec(cmd.Context(), line); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
