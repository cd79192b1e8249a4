// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/cli"
	"github.com/netascode/go-ncx/cond"
	"github.com/netascode/go-ncx/schema"
	"github.com/netascode/go-ncx/val"
)

// loadCatalog returns the base operations plus the configured schema files
func loadCatalog(cfg *ncx.Config) (*schema.Catalog, error) {
	cat := newCatalog()
	for _, file := range cfg.SchemaFiles {
		objs, err := schema.LoadFile(file)
		if err != nil {
			return nil, fmt.Errorf("load schema %s: %w", file, err)
		}
		cat.Add(objs...)
	}
	return cat, nil
}

func newParseCommand(opts *globalOptions) *cobra.Command {
	var valuesOnly bool

	cmd := &cobra.Command{
		Use:   "parse RPC [PARAMS...]",
		Short: "Parse rpc parameters into an input tree",
		Long: `Parse the parameters of an rpc the way a command line is parsed and
print the resulting input tree as JSON. Defaults are added and instance
counts checked unless --values-only is given. Dashed parameters go
after a "--" separator.`,
		Example: `  ncxsh parse kill-session session-id=4
  ncxsh parse --schema system.yaml set-hostname -- --hostname=r1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			op, err := cat.MatchRPC(args[0])
			if err != nil {
				return err
			}
			in := op.Input()
			if in == nil {
				return fmt.Errorf("%w: %s takes no parameters", ncx.ErrUnexpectedValue, op.QName())
			}

			p := cli.NewParser(
				cli.WithConfig(cfg),
				cli.WithEngine(val.NewEngine(val.WithWhen(cond.New(cond.WithLogger(logger))), val.WithLogger(logger))),
				cli.WithLogger(logger),
			)
			var mods []func(*cli.Req)
			if valuesOnly {
				mods = append(mods, cli.ValuesOnly())
			}
			v, err := p.Parse(args, in, mods...)
			if err != nil {
				return err
			}
			if v == nil {
				v = val.New(in)
			}
			doc, err := val.EncodeJSON(v)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), doc)
			return err
		},
	}

	cmd.Flags().BoolVar(&valuesOnly, "values-only", false, "skip defaults and the instance check")

	return cmd
}
