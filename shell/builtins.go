// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package shell

import (
	"context"
	"fmt"
	"strings"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
	"github.com/netascode/go-ncx/val"
	"github.com/netascode/go-ncx/vars"
)

// BuiltinModule is the module prefix of the built-in commands
const BuiltinModule = "ncxsh"

const builtinNS = 1

func exprInput(extra ...schema.Item) *schema.Object {
	items := []schema.Item{
		schema.DefaultParm("expr"),
		schema.Leaf("expr", schema.TypeString, schema.Mandatory(),
			schema.Description("Expression to evaluate")),
		schema.Anyxml("docroot",
			schema.Description("Document the expression is evaluated against")),
	}
	return schema.Input(append(items, extra...)...)
}

func msgInput() *schema.Object {
	return schema.Input(schema.DefaultParm("msg"),
		schema.Leaf("msg", schema.TypeString, schema.Mandatory(), schema.MinLength(0)),
	)
}

func runInput() *schema.Object {
	items := []schema.Item{
		schema.DefaultParm("script"),
		schema.Leaf("script", schema.TypeString, schema.Mandatory(),
			schema.Description("Script file, searched in the script paths")),
	}
	for i := 1; i <= ncx.MaxScriptParms; i++ {
		items = append(items, schema.Leaf(fmt.Sprintf("P%d", i), schema.TypeString, schema.MinLength(0)))
	}
	return schema.Input(items...)
}

// Builtins returns the rpc objects of the built-in commands
func Builtins() []*schema.Object {
	mod := schema.Module(BuiltinModule, builtinNS)
	return []*schema.Object{
		schema.RPC("if", mod, schema.Description("Start an if block"), exprInput()),
		schema.RPC("elif", mod, schema.Description("Start an elif branch"), exprInput()),
		schema.RPC("else", mod, schema.Description("Start the else branch")),
		schema.RPC("end", mod, schema.Description("End an if or while block")),
		schema.RPC("while", mod, schema.Description("Start a while loop"),
			exprInput(schema.Leaf("maxloops", schema.TypeUint32,
				schema.Description("Maximum number of passes; 0 uses the session limit")))),
		schema.RPC("eval", mod, schema.Description("Evaluate an expression"), exprInput()),
		schema.RPC("run", mod, schema.Description("Run a script"), runInput()),
		schema.RPC("unset", mod, schema.Description("Remove a variable"),
			schema.Input(schema.DefaultParm("var"), schema.Leaf("var", schema.TypeString, schema.Mandatory()))),
		schema.RPC("alias", mod, schema.Description("Show or define aliases")),
		schema.RPC("unalias", mod, schema.Description("Remove an alias")),
		schema.RPC("log-error", mod, schema.Description("Log an error message"), msgInput()),
		schema.RPC("log-warn", mod, schema.Description("Log a warning message"), msgInput()),
		schema.RPC("log-info", mod, schema.Description("Log an info message"), msgInput()),
		schema.RPC("log-debug", mod, schema.Description("Log a debug message"), msgInput()),
	}
}

// blockKeywords run even inside a false branch
var blockKeywords = map[string]bool{
	"if":    true,
	"elif":  true,
	"else":  true,
	"end":   true,
	"while": true,
}

// rawBuiltins take their argument text unparsed
var rawBuiltins = map[string]bool{
	"alias":   true,
	"unalias": true,
}

type handler func(s *Session, ctx context.Context, input *val.Value) (*val.Value, error)

var handlers = map[string]handler{
	"eval":      (*Session).evalCmd,
	"run":       (*Session).runCmd,
	"unset":     (*Session).unsetCmd,
	"log-error": logCmd(func(l ncx.Logger, msg string) { l.Error(msg) }),
	"log-warn":  logCmd(func(l ncx.Logger, msg string) { l.Warn(msg) }),
	"log-info":  logCmd(func(l ncx.Logger, msg string) { l.Info(msg) }),
	"log-debug": logCmd(func(l ncx.Logger, msg string) { l.Debug(msg) }),
}

func leafText(input *val.Value, name string) string {
	if input == nil {
		return ""
	}
	if v := input.FindChild(0, name); v != nil {
		return v.String()
	}
	return ""
}

func exprArgs(input *val.Value) (string, *val.Value) {
	if input == nil {
		return "", nil
	}
	return leafText(input, "expr"), input.FindChild(0, "docroot")
}

func (s *Session) evalCmd(_ context.Context, input *val.Value) (*val.Value, error) {
	expr, docroot := exprArgs(input)
	return s.eval.Eval("data", expr, docroot, docroot)
}

func (s *Session) runCmd(_ context.Context, input *val.Value) (*val.Value, error) {
	var args []string
	last := 0
	for i := 1; i <= ncx.MaxScriptParms; i++ {
		if input.FindChild(0, fmt.Sprintf("P%d", i)) != nil {
			last = i
		}
	}
	for i := 1; i <= last; i++ {
		args = append(args, leafText(input, fmt.Sprintf("P%d", i)))
	}
	return nil, s.push(leafText(input, "script"), args...)
}

func (s *Session) unsetCmd(_ context.Context, input *val.Value) (*val.Value, error) {
	name := leafText(input, "var")
	if !strings.HasPrefix(name, "$") {
		name = "$" + name
	}
	ref, err := s.vars.ParseRef(name, vars.Left)
	if err != nil {
		return nil, err
	}
	if ref.Len != len(name) {
		return nil, fmt.Errorf("%w: variable name %q", ncx.ErrInvalidName, leafText(input, "var"))
	}
	return nil, s.vars.Unset(ref.Name, ref.Kind)
}

func logCmd(fn func(ncx.Logger, string)) handler {
	return func(s *Session, _ context.Context, input *val.Value) (*val.Value, error) {
		fn(s.logger, leafText(input, "msg"))
		return nil, nil
	}
}

func (s *Session) aliasCmd(args string) error {
	if args == "" {
		_, err := s.aliases.WriteTo(s.out)
		return err
	}
	if !strings.Contains(args, "=") {
		text, ok := s.aliases.Get(args)
		if !ok {
			return fmt.Errorf("%w: alias %s", ncx.ErrNotFound, args)
		}
		_, err := fmt.Fprintf(s.out, "%s=%s\n", args, text)
		return err
	}
	return s.aliases.Set(args)
}

func (s *Session) unaliasCmd(args string) error {
	if !s.aliases.Delete(args) {
		return fmt.Errorf("%w: alias %s", ncx.ErrNotFound, args)
	}
	return nil
}
