// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/cond"
	"github.com/netascode/go-ncx/val"
)

func newCheckCommand(opts *globalOptions) *cobra.Command {
	var (
		defaults bool
		printDoc bool
	)

	cmd := &cobra.Command{
		Use:   "check OBJECT FILE",
		Short: "Check a JSON instance document against a template",
		Long: `Decode a JSON document against a template of the loaded schema files
and check the instance counts, choices and when conditions of every node.
A FILE of "-" reads the document from standard input.`,
		Example: `  ncxsh check --schema interfaces.yaml if:interfaces interfaces.json
  ncxsh check --schema interfaces.yaml --defaults --print interfaces - < interfaces.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			obj := cat.Find(args[0])
			if obj == nil {
				return fmt.Errorf("%w: no template %q", ncx.ErrNotFound, args[0])
			}

			var data []byte
			if args[1] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[1])
			}
			if err != nil {
				return fmt.Errorf("%w: %w", ncx.ErrReadFailed, err)
			}
			v, err := val.DecodeJSON(obj, data)
			if err != nil {
				return err
			}

			engine := val.NewEngine(val.WithWhen(cond.New(cond.WithLogger(logger))), val.WithLogger(logger))
			if defaults {
				if err := engine.AddDefaults(v, nil, nil); err != nil {
					return err
				}
			}
			if err := checkTree(engine, v); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if printDoc {
				engine.Canonicalize(v)
				doc, err := val.EncodeJSON(v)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, doc)
				return err
			}
			_, err = fmt.Fprintf(out, "%s: ok\n", obj.QName())
			return err
		},
	}

	cmd.Flags().BoolVar(&defaults, "defaults", false, "add missing default leaves before checking")
	cmd.Flags().BoolVar(&printDoc, "print", false, "print the checked document instead of ok")

	return cmd
}

// checkTree runs the instance checks on v and reports every node whose
// when condition is false
func checkTree(engine *val.Engine, v *val.Value) error {
	errs := []error{engine.Validate(v)}
	whenErrs := &ncx.Error{Operation: "when"}
	v.Walk(func(n *val.Value) bool {
		ok, err := engine.CheckWhen(n)
		switch {
		case err != nil:
			errs = append(errs, err)
		case !ok:
			whenErrs.Add(ncx.ErrorModel{
				Status:  ncx.ErrInvalidValue,
				Name:    n.Name(),
				Message: fmt.Sprintf("when condition %q is false", n.Object().When),
			})
		}
		return true
	})
	return errors.Join(append(errs, whenErrs.Err())...)
}
