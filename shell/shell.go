// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package shell interprets command lines and scripts.
//
// A Session ties a run stack, a variable store and a parameter parser to a
// catalog of rpc objects. Every line is either a block keyword (if, elif,
// else, end, while), a variable assignment, a built-in command or an rpc
// handed to a Dispatcher.
//
// Basic usage:
//
//	sess, err := shell.NewSession(
//	    shell.WithCatalog(schema.NewCatalog(objs...)),
//	    shell.WithOutput(os.Stdout),
//	)
//	if err != nil {
//	    return err
//	}
//	defer sess.Close()
//
//	if err := sess.Exec(ctx, `$count = 3`); err != nil {
//	    return err
//	}
//	err = sess.RunFile(ctx, "setup.ncx", "eth0")
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/cli"
	"github.com/netascode/go-ncx/cond"
	"github.com/netascode/go-ncx/runstack"
	"github.com/netascode/go-ncx/schema"
	"github.com/netascode/go-ncx/val"
	"github.com/netascode/go-ncx/vars"
)

// Dispatcher sends a finished rpc input tree to a server and returns the
// reply data, if any
type Dispatcher interface {
	Dispatch(ctx context.Context, rpc *schema.Object, input *val.Value) (*val.Value, error)
}

// Session is one interpreter session
//
// A Session is not safe for concurrent use.
type Session struct {
	// ID identifies the session in log messages; also bound to the
	// system variable $$session-id
	ID string

	config     *ncx.Config
	catalog    *schema.Catalog
	builtins   map[string]*schema.Object
	dispatcher Dispatcher
	out        io.Writer
	logger     ncx.Logger

	vars    *vars.Store
	aliases *vars.Aliases
	stack   *runstack.Stack
	engine  *val.Engine
	eval    *cond.Evaluator
	parser  *cli.Parser
}

// WithConfig sets the session configuration
func WithConfig(cfg *ncx.Config) func(*Session) {
	return func(s *Session) {
		s.config = cfg
	}
}

// WithCatalog sets the rpc catalog; the built-in commands are added to it
func WithCatalog(c *schema.Catalog) func(*Session) {
	return func(s *Session) {
		s.catalog = c
	}
}

// WithDispatcher sets where rpcs are sent
//
// Without a dispatcher rpc input trees are written to the output instead.
func WithDispatcher(d Dispatcher) func(*Session) {
	return func(s *Session) {
		s.dispatcher = d
	}
}

// WithOutput sets where command results are written
func WithOutput(w io.Writer) func(*Session) {
	return func(s *Session) {
		s.out = w
	}
}

// WithLogger sets the logger
func WithLogger(l ncx.Logger) func(*Session) {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession creates a Session
//
// The schema files, saved variables and aliases named in the configuration
// are loaded; missing variable and alias files are not an error.
func NewSession(opts ...func(*Session)) (*Session, error) {
	s := &Session{
		ID:     uuid.NewString(),
		config: ncx.DefaultConfig(),
		out:    io.Discard,
		logger: &ncx.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	if s.catalog == nil {
		s.catalog = schema.NewCatalog()
	}

	s.builtins = make(map[string]*schema.Object)
	for _, obj := range Builtins() {
		s.builtins[obj.Name] = obj
		s.catalog.Add(obj)
	}
	for _, file := range s.config.SchemaFiles {
		objs, err := schema.LoadFile(file)
		if err != nil {
			return nil, fmt.Errorf("load schema %s: %w", file, err)
		}
		s.catalog.Add(objs...)
	}

	s.vars = vars.New(vars.WithConfig(s.config), vars.WithLogger(s.logger))
	s.aliases = vars.NewAliases()
	s.eval = cond.New(cond.WithResolver(s.vars), cond.WithLogger(s.logger))
	s.engine = val.NewEngine(val.WithWhen(s.eval), val.WithLogger(s.logger))
	s.parser = cli.NewParser(
		cli.WithConfig(s.config),
		cli.WithEngine(s.engine),
		cli.WithVars(s.vars),
		cli.WithLogger(s.logger),
	)
	s.stack = runstack.New(
		runstack.WithConfig(s.config),
		runstack.WithVars(s.vars),
		runstack.WithLogger(s.logger),
		runstack.WithLoopEnd(func(e runstack.LoopEnd) {
			s.logger.Debug("while loop finished", "session", s.ID, "passes", e.Passes, "reason", e.Reason)
		}),
	)

	if err := s.vars.SetString("session-id", s.ID, vars.KindSystem); err != nil {
		return nil, err
	}
	if f := s.config.SavedVarsFile; f != "" {
		if err := s.vars.LoadGlobalsFile(f); err != nil {
			return nil, err
		}
	}
	if f := s.config.AliasFile; f != "" {
		if err := s.aliases.LoadFile(f); err != nil {
			return nil, err
		}
	}
	s.logger.Debug("session started", "session", s.ID, "rpcs", len(s.catalog.RPCNames()))
	return s, nil
}

// Vars returns the variable store
func (s *Session) Vars() *vars.Store { return s.vars }

// Aliases returns the alias table
func (s *Session) Aliases() *vars.Aliases { return s.aliases }

// Stack returns the run stack
func (s *Session) Stack() *runstack.Stack { return s.stack }

// Catalog returns the rpc catalog including the built-in commands
func (s *Session) Catalog() *schema.Catalog { return s.catalog }

// Close ends the session, saving the global variables and aliases to the
// configured files
func (s *Session) Close() error {
	var errs []error
	if f := s.config.SavedVarsFile; f != "" {
		errs = append(errs, s.vars.SaveGlobalsFile(f))
	}
	if f := s.config.AliasFile; f != "" {
		errs = append(errs, s.saveAliases(f))
	}
	s.logger.Debug("session closed", "session", s.ID)
	return errors.Join(errs...)
}

func (s *Session) saveAliases(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ncx.ErrReadFailed, err)
	}
	if _, err := s.aliases.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Exec runs one line typed by the user, followed by every script line or
// loop replay it starts
//
// An error from a script line cancels the running scripts and is returned
// with the script name and line number.
func (s *Session) Exec(ctx context.Context, line string) error {
	s.stack.SaveLine(line)
	if _, err := s.execLine(ctx, line); err != nil {
		if s.stack.Source() != runstack.SourceUser {
			s.stack.Cancel()
			_ = s.drain(ctx)
		}
		return err
	}
	return s.drain(ctx)
}

// Run starts the script read from r and runs it to completion; source
// names the script in messages and becomes $0
func (s *Session) Run(ctx context.Context, source string, r io.Reader, args ...string) error {
	if err := s.stack.Push(source, r, args...); err != nil {
		return err
	}
	return s.drain(ctx)
}

// RunFile runs a script file, searched in the configured script paths
func (s *Session) RunFile(ctx context.Context, name string, args ...string) error {
	if err := s.push(name, args...); err != nil {
		return err
	}
	return s.drain(ctx)
}

func (s *Session) push(name string, args ...string) error {
	path, err := s.vars.FindFile(name)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ncx.ErrReadFailed, err)
	}
	if err := s.stack.Push(path, f, args...); err != nil {
		f.Close()
		return err
	}
	return nil
}

// drain runs lines until the stack asks for user input
func (s *Session) drain(ctx context.Context) error {
	var first error
	for {
		if err := ctx.Err(); err != nil && !s.stack.Canceled() {
			s.stack.Cancel()
			if first == nil {
				first = fmt.Errorf("%w: %w", ncx.ErrCanceled, err)
			}
		}
		line, err := s.stack.NextLine()
		switch {
		case errors.Is(err, ncx.ErrEOF):
			return first
		case errors.Is(err, ncx.ErrCanceled):
			s.stack.ClearCancel()
			if first == nil {
				first = err
			}
			return first
		case err != nil:
			s.logger.Error("script failed", "session", s.ID, "error", err)
			if first == nil {
				first = err
			}
			// unterminated blocks and unreadable scripts end only that script
			if errors.Is(err, ncx.ErrEvalFailed) {
				s.stack.Cancel()
			}
			continue
		}

		s.stack.SaveLine(line.Text)
		if _, err := s.execLine(ctx, line.Text); err != nil {
			s.logger.Error("script line failed", "session", s.ID, "script", line.Script, "line", line.Number, "error", err)
			if first == nil {
				first = fmt.Errorf("%s:%d: %w", line.Script, line.Number, err)
			}
			s.stack.Cancel()
		}
	}
}

// execLine runs one line and returns the result of the command, if any
func (s *Session) execLine(ctx context.Context, text string) (*val.Value, error) {
	line := strings.TrimSpace(text)
	if line == "" || line[0] == '#' {
		return nil, nil
	}
	word, rest := splitWord(line)
	if blockKeywords[word] {
		return nil, s.block(word, rest)
	}
	if !s.stack.CondState() {
		return nil, nil
	}
	if expanded, ok := s.aliases.Expand(line); ok {
		line = strings.TrimSpace(expanded)
		word, rest = splitWord(line)
	}
	if line[0] == '$' {
		return nil, s.assign(ctx, line)
	}
	out, err := s.command(ctx, word, rest)
	if err != nil {
		return nil, err
	}
	return out, s.show(out)
}

func splitWord(line string) (string, string) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}

func (s *Session) block(keyword, args string) error {
	switch keyword {
	case "if":
		return s.stack.If(s.condition(keyword, args))
	case "elif":
		return s.stack.Elif(s.condition(keyword, args))
	case "while":
		return s.while(args)
	}
	if args != "" {
		return fmt.Errorf("%w: %s takes no parameters, got %q", ncx.ErrUnexpectedValue, keyword, args)
	}
	if keyword == "else" {
		return s.stack.Else()
	}
	return s.stack.End()
}

// condition parses the keyword parameters when the stack first asks for
// the result; the parsed document root is kept for later evaluations
func (s *Session) condition(keyword, args string) runstack.Cond {
	var input *val.Value
	return func() (bool, error) {
		if input == nil {
			var err error
			input, err = s.parser.ParseLine(args, s.builtins[keyword].Input(), cli.Script())
			if err != nil {
				return false, err
			}
		}
		expr, docroot := exprArgs(input)
		return s.eval.EvalBool(expr, docroot, docroot)
	}
}

func (s *Session) while(args string) error {
	if !s.stack.CondState() {
		return s.stack.While(func() (bool, error) { return false, nil }, 0)
	}
	input, err := s.parser.ParseLine(args, s.builtins["while"].Input(), cli.Script())
	if err != nil {
		return err
	}
	limit := 0
	if m := input.FindChild(0, "maxloops"); m != nil {
		if u, ok := m.Payload().(val.Uint); ok {
			limit = int(u)
		}
	}
	expr, docroot := exprArgs(input)
	return s.stack.While(func() (bool, error) {
		return s.eval.EvalBool(expr, docroot, docroot)
	}, limit)
}

// assign handles "$name = value", "$$name = value" and "$name =", which
// removes the variable
func (s *Session) assign(ctx context.Context, line string) error {
	ref, err := s.vars.ParseRef(line, vars.Left)
	if err != nil {
		return err
	}
	rest := strings.TrimSpace(line[ref.Len:])
	if !strings.HasPrefix(rest, "=") {
		return fmt.Errorf("%w: expected '=' after %s", ncx.ErrInvalidValue, strings.TrimSpace(line[:ref.Len]))
	}
	rhs := strings.TrimSpace(rest[1:])
	if rhs == "" {
		return s.vars.Unset(ref.Name, ref.Kind)
	}
	v, err := s.value(ctx, ref.Name, rhs)
	if err != nil {
		return err
	}
	return s.vars.SetMove(ref.Name, v, ref.Kind)
}

// value converts the right side of an assignment: a variable copy, a
// command result or a literal
func (s *Session) value(ctx context.Context, name, rhs string) (*val.Value, error) {
	if rhs[0] == '$' {
		if ref, err := s.vars.ParseRef(rhs, vars.Right); err == nil && ref.Len == len(rhs) {
			v, err := s.vars.Resolve(rhs)
			if err != nil {
				return nil, err
			}
			return v.Clone(), nil
		}
	}

	tmpl := literalObject(name, rhs)
	v, err := s.vars.ScriptValue(tmpl, rhs, true)
	if err != nil || v != nil {
		return v, err
	}

	word, args := splitWord(rhs)
	if blockKeywords[word] {
		return nil, fmt.Errorf("%w: %s has no result to assign", ncx.ErrInvalidValue, word)
	}
	if _, err := s.catalog.MatchRPC(word); err != nil {
		if errors.Is(err, ncx.ErrAmbiguousParm) {
			return nil, err
		}
		// not a command: a plain word
		return s.vars.ScriptValue(tmpl, rhs, false)
	}
	out, err := s.command(ctx, word, args)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: %s returned no data", ncx.ErrEmptyValue, word)
	}
	return out, nil
}

// literalObject picks the template for an assigned literal: numbers and
// booleans keep their type, markup and files become anyxml
func literalObject(name, text string) *schema.Object {
	switch {
	case text[0] == '@' || strings.HasPrefix(text, "[<"):
		return schema.Anyxml(name)
	case text == "true" || text == "false":
		return schema.Leaf(name, schema.TypeBoolean)
	}
	if _, err := strconv.ParseInt(text, 10, 64); err == nil {
		return schema.Leaf(name, schema.TypeInt64)
	}
	if _, err := strconv.ParseFloat(text, 64); err == nil {
		return schema.Leaf(name, schema.TypeFloat64)
	}
	return schema.Leaf(name, schema.TypeString, schema.MinLength(0))
}

// command runs a built-in or hands an rpc to the dispatcher and returns
// its result
func (s *Session) command(ctx context.Context, word, args string) (*val.Value, error) {
	obj, err := s.catalog.MatchRPC(word)
	if err != nil {
		if errors.Is(err, ncx.ErrAmbiguousParm) {
			return nil, err
		}
		msg := fmt.Sprintf("unknown command %q", word)
		if hints := cli.Suggest(word, s.catalog.RPCNames()); len(hints) > 0 {
			msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(hints, " or "))
		}
		return nil, fmt.Errorf("%w: %s", ncx.ErrUnknownParm, msg)
	}

	builtin := s.builtins[obj.Name] == obj
	if builtin && rawBuiltins[obj.Name] {
		if obj.Name == "alias" {
			return nil, s.aliasCmd(args)
		}
		return nil, s.unaliasCmd(args)
	}

	var input *val.Value
	if in := obj.Input(); in != nil {
		input, err = s.parser.ParseLine(args, in, cli.Script())
		if err != nil {
			return nil, err
		}
	} else if args != "" {
		return nil, fmt.Errorf("%w: %s takes no parameters, got %q", ncx.ErrUnexpectedValue, obj.Name, args)
	}

	if builtin {
		h, ok := handlers[obj.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s cannot be used here", ncx.ErrInvalidValue, obj.Name)
		}
		return h(s, ctx, input)
	}

	if s.dispatcher == nil {
		s.logger.Info("no server, rpc not sent", "session", s.ID, "rpc", obj.Name)
		if input == nil {
			input = val.NewContainer("input")
		}
		return input, nil
	}
	s.logger.Debug("sending rpc", "session", s.ID, "rpc", obj.Name)
	out, err := s.dispatcher.Dispatch(ctx, obj, input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", obj.Name, err)
	}
	return out, nil
}

// show writes a command result: leaves as "name = value", trees as JSON
func (s *Session) show(v *val.Value) error {
	if v == nil {
		return nil
	}
	if !v.HasChildStorage() {
		_, err := fmt.Fprintf(s.out, "%s = %s\n", v.Name(), v)
		return err
	}
	doc, err := val.EncodeJSON(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.out, doc)
	return err
}
