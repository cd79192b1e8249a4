// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package cli converts command lines and script lines into value trees.
//
// A line is a sequence of parameters:
//
//	--name=value  -name=value  name=value  name value  name
//
// Names match a data child of the target object exactly or, with
// autocomplete enabled, by unique prefix. A bare token that matches nothing
// becomes the value of the object's default parameter. Values may be
// quoted; in script mode they may also be variable references ($x, $$x),
// file references (@file) or inline markup ([<...>]).
//
// Parsing continues past a bad parameter when the session is configured to
// continue on error; every failure is reported in the returned *ncx.Error
// and the failing parameter never enters the tree. An ambiguous name always
// ends the line.
package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/schema"
	"github.com/netascode/go-ncx/val"
	"github.com/netascode/go-ncx/vars"
)

// Parser builds value trees from text
type Parser struct {
	config *ncx.Config
	engine *val.Engine
	vars   *vars.Store
	logger ncx.Logger
}

// Req holds the per-call parse settings
type Req struct {
	// ValuesOnly skips defaulting and the instance check, as used for
	// completion of a partial line
	ValuesOnly bool

	// Script keeps quotes and enables variable, file and inline markup
	// values
	Script bool

	// Mode selects how input tokens are joined
	Mode Mode
}

// WithConfig sets the session configuration
func WithConfig(cfg *ncx.Config) func(*Parser) {
	return func(p *Parser) {
		p.config = cfg
	}
}

// WithEngine sets the engine used for defaulting and instance checks
func WithEngine(e *val.Engine) func(*Parser) {
	return func(p *Parser) {
		p.engine = e
	}
}

// WithVars sets the variable store consulted in script mode
func WithVars(s *vars.Store) func(*Parser) {
	return func(p *Parser) {
		p.vars = s
	}
}

// WithLogger sets the logger
func WithLogger(l ncx.Logger) func(*Parser) {
	return func(p *Parser) {
		p.logger = l
	}
}

// ValuesOnly skips defaulting and the instance check
func ValuesOnly() func(*Req) {
	return func(r *Req) {
		r.ValuesOnly = true
	}
}

// Script enables script values
func Script() func(*Req) {
	return func(r *Req) {
		r.Script = true
	}
}

// CommandMode joins tokens without re-quoting
func CommandMode() func(*Req) {
	return func(r *Req) {
		r.Mode = ModeCommand
	}
}

// NewParser creates a Parser
func NewParser(opts ...func(*Parser)) *Parser {
	p := &Parser{
		config: ncx.DefaultConfig(),
		logger: &ncx.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.engine == nil {
		p.engine = val.NewEngine(val.WithLogger(p.logger))
	}
	if p.vars == nil {
		p.vars = vars.New(vars.WithConfig(p.config), vars.WithLogger(p.logger))
	}
	return p
}

// Parse builds a tree of obj from argv; argv[0] is the program or command
// name and is skipped
//
// The returned tree holds every parameter that parsed, even when an error
// is returned. The error is an *ncx.Error with one finding per bad
// parameter or cardinality violation.
//
// Example:
//
//	p := cli.NewParser()
//	parms, err := p.Parse(os.Args, obj)
func (p *Parser) Parse(argv []string, obj *schema.Object, mods ...func(*Req)) (*val.Value, error) {
	req := Req{Mode: ModeProgram}
	for _, mod := range mods {
		mod(&req)
	}
	if len(argv) < 2 && req.ValuesOnly {
		return nil, nil
	}
	if obj == nil || !obj.Type.HasChildren() {
		return nil, fmt.Errorf("%w: cannot parse parameters into %v", ncx.ErrWrongType, obj)
	}

	root := val.New(obj)
	errs := &ncx.Error{Operation: obj.Name}
	if len(argv) > 1 {
		line := CopyArgv(argv[1:], req.Mode)
		p.logger.Debug("parsing parameters", "object", obj.Name, "line", line)
		p.scan(root, line, req, errs)
	}

	if len(errs.Errors) == 0 && !req.ValuesOnly {
		if err := p.engine.AddDefaults(root, nil, nil); err != nil {
			addErr(errs, "", err)
		}
		if err := p.engine.InstanceCheck(root, obj); err != nil {
			addErr(errs, "", err)
		}
	}
	return root, errs.Err()
}

// ParseLine parses the parameters of one command line, the text after
// the command name
func (p *Parser) ParseLine(line string, obj *schema.Object, mods ...func(*Req)) (*val.Value, error) {
	mods = append(mods, CommandMode())
	return p.Parse([]string{obj.Name, line}, obj, mods...)
}

// addErr records err, expanding an *ncx.Error into its findings
func addErr(errs *ncx.Error, name string, err error) {
	var nerr *ncx.Error
	if errors.As(err, &nerr) && len(nerr.Errors) > 0 {
		for _, m := range nerr.Errors {
			errs.Add(m)
		}
		return
	}
	errs.Add(ncx.ErrorModel{Status: ncx.StatusOf(err), Name: name, Message: err.Error()})
}

type scanner struct {
	buf        string
	pos        int
	gotDefault bool
}

func (s *scanner) at(i int) byte {
	if i < len(s.buf) {
		return s.buf[i]
	}
	return 0
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.buf) && isSpace(s.buf[s.pos]) {
		s.pos++
	}
}

func (p *Parser) scan(root *val.Value, line string, req Req, errs *ncx.Error) {
	s := &scanner{buf: line}
	for {
		s.skipSpace()
		if s.pos >= len(s.buf) {
			return
		}
		start := s.pos
		name, value, err := p.parseOne(root, s, req)
		if err == nil {
			continue
		}

		p.logger.Error("invalid parameter", "object", root.Name(), "parameter", name, "value", value, "error", err)
		m := ncx.ErrorModel{Status: ncx.StatusOf(err), Name: name, Value: value, Message: err.Error()}
		errs.Add(m)
		// an ambiguous name ends the line whatever the error mode
		if !p.config.ContinueOnError || errors.Is(err, ncx.ErrAmbiguousParm) {
			return
		}
		if s.pos == start {
			s.skipToken()
		}
	}
}

// skipToken moves past one parameter token after an error
func (s *scanner) skipToken() {
	for s.pos < len(s.buf) && !isSpace(s.buf[s.pos]) {
		if c := s.buf[s.pos]; c == '"' || c == '\'' {
			if end := strings.IndexByte(s.buf[s.pos+1:], c); end >= 0 {
				s.pos += end + 2
				continue
			}
			s.pos = len(s.buf)
			return
		}
		s.pos++
	}
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9') || c == '-' || c == '.'
}

// parseOne scans one name[=value] parameter and adds it to root. It
// returns the parameter name and value for error reporting.
func (p *Parser) parseOne(root *val.Value, s *scanner, req Req) (string, string, error) {
	obj := root.Object()

	gotDashes := false
	if s.at(s.pos) == '-' {
		switch c := s.at(s.pos + 1); {
		case c == 0 || isSpace(c):
			s.skipToken()
			return "-", "", fmt.Errorf("%w: lone dash", ncx.ErrInvalidPrefix)
		case c == '-':
			if c2 := s.at(s.pos + 2); c2 == 0 || isSpace(c2) || c2 == '-' {
				tok := s.buf[s.pos:]
				s.skipToken()
				return strings.Fields(tok)[0], "", fmt.Errorf("%w: too many dashes", ncx.ErrInvalidPrefix)
			}
			s.pos += 2
		default:
			s.pos++
		}
		gotDashes = true
	}

	nameStart := s.pos
	nameLen := 0
	var chobj *schema.Object
	gotMatch := false
	if isNameStart(s.at(s.pos)) {
		for isNameChar(s.at(nameStart + nameLen)) {
			nameLen++
		}
		name := s.buf[nameStart : nameStart+nameLen]
		chobj = obj.FindData(name)
		if chobj == nil && p.config.Autocomplete {
			matches := obj.MatchPrefix(name)
			switch len(matches) {
			case 0:
			case 1:
				chobj = matches[0]
				gotMatch = true
			default:
				s.pos += nameLen
				if s.at(s.pos) == '=' {
					s.pos++
					s.skipValue(req.Script)
				}
				names := make([]string, len(matches))
				for i, m := range matches {
					names[i] = m.Name
				}
				return name, "", fmt.Errorf("%w: %q matches %s", ncx.ErrAmbiguousParm, name, strings.Join(names, ", "))
			}
		}
		if chobj != nil {
			s.pos += nameLen
		}
	}
	name := s.buf[nameStart : nameStart+nameLen]

	isDefault := false
	if chobj == nil && !gotDashes {
		if nameLen > 0 {
			idx := nameStart + nameLen
			for isSpace(s.at(idx)) {
				idx++
			}
			if s.at(idx) == '=' {
				s.pos = idx + 1
				s.skipValue(req.Script)
				return name, "", p.unknown(obj, name)
			}
		}
		chobj = obj.DefaultParmObject()
		if chobj != nil {
			if chobj.Kind != schema.KindLeafList && s.gotDefault {
				value, _ := s.value(req.Script)
				return chobj.Name, value, fmt.Errorf("%w: default parameter %s already entered", ncx.ErrDuplicateEntry, chobj.Name)
			}
			s.gotDefault = true
			isDefault = true
		}
	}
	if chobj == nil {
		if nameLen == 0 {
			s.skipToken()
			return s.buf[nameStart:s.pos], "", fmt.Errorf("%w: invalid parameter name", ncx.ErrUnknownParm)
		}
		s.pos = nameStart + nameLen
		if idx := s.pos; s.at(idx) == '=' {
			s.pos = idx + 1
			s.skipValue(req.Script)
		}
		return name, "", p.unknown(obj, name)
	}

	if !isDefault {
		s.skipSpace()
	}

	var value string
	hasValue := false
	switch {
	case chobj.IsEmptyType():
		if s.at(s.pos) == '=' {
			s.pos++
			v, _ := s.value(req.Script)
			return chobj.Name, v, fmt.Errorf("%w: empty leaf %s takes no value", ncx.ErrUnexpectedValue, chobj.Name)
		}
	case s.pos < len(s.buf):
		if !isDefault && s.at(s.pos) == '=' {
			s.pos++
			s.skipSpace()
		}
		if s.pos < len(s.buf) {
			v, err := s.value(req.Script)
			if err != nil {
				return chobj.Name, v, err
			}
			value, hasValue = v, true
		}
	}

	if !hasValue && !chobj.IsEmptyType() && !(chobj.Type == schema.TypeString && chobj.MinLength == 0) {
		// a prefix match without a value may be a default parameter value
		if gotMatch && !gotDashes {
			if dp := obj.DefaultParmObject(); dp != nil {
				return dp.Name, name, p.ParseParm(root, dp, name, req.Script)
			}
		}
		return chobj.Name, "", fmt.Errorf("%w: %s needs a value", ncx.ErrEmptyValue, chobj.Name)
	}

	return chobj.Name, value, p.ParseParm(root, chobj, value, req.Script)
}

func (p *Parser) unknown(obj *schema.Object, name string) error {
	var candidates []string
	for _, ch := range obj.DataChildren() {
		candidates = append(candidates, ch.Name)
	}
	if hints := Suggest(name, candidates); len(hints) > 0 {
		return fmt.Errorf("%w: %s (did you mean %s?)", ncx.ErrUnknownParm, name, hints[0])
	}
	return fmt.Errorf("%w: %s", ncx.ErrUnknownParm, name)
}

// value scans a value token: a quoted string, inline markup in script
// mode, or text up to the next whitespace. Script mode keeps the quotes.
func (s *scanner) value(script bool) (string, error) {
	start := s.pos
	c := s.at(start)
	switch {
	case c == '"' || c == '\'':
		end := strings.IndexByte(s.buf[start+1:], c)
		if end < 0 {
			s.pos = len(s.buf)
			return s.buf[start:], fmt.Errorf("%w: %s", ncx.ErrUnterminatedString, s.buf[start:])
		}
		s.pos = start + end + 2
		if script {
			return s.buf[start:s.pos], nil
		}
		return s.buf[start+1 : s.pos-1], nil

	case script && c == '[' && s.at(start+1) == '<':
		end := strings.Index(s.buf[start+2:], ">]")
		if end < 0 {
			s.pos = len(s.buf)
			return s.buf[start:], fmt.Errorf("%w: inline markup %s", ncx.ErrUnterminatedString, s.buf[start:])
		}
		s.pos = start + end + 4
		return s.buf[start:s.pos], nil
	}
	for s.pos < len(s.buf) && !isSpace(s.buf[s.pos]) {
		s.pos++
	}
	return s.buf[start:s.pos], nil
}

func (s *scanner) skipValue(script bool) {
	s.skipSpace()
	if s.pos < len(s.buf) {
		_, _ = s.value(script)
	}
}

// ParseParm converts text into a node of obj and adds it to parent in
// schema order
func (p *Parser) ParseParm(parent *val.Value, obj *schema.Object, text string, script bool) error {
	node, err := p.parmValue(obj, text, script)
	if err != nil {
		return err
	}
	return addSorted(parent, node)
}

func (p *Parser) parmValue(obj *schema.Object, text string, script bool) (*val.Value, error) {
	ref := text != "" && (text[0] == '$' || text[0] == '@')

	switch {
	case obj.Root:
		if !script {
			return nil, fmt.Errorf("%w: root container %s only takes script values", ncx.ErrInvalidValue, obj.Name)
		}
		return p.scriptValue(obj, text)

	case obj.Kind == schema.KindContainer && obj.SoleChoice() != nil:
		return p.choiceContainer(obj, text, script)

	case obj.Kind == schema.KindContainer && !script:
		return nil, fmt.Errorf("%w: container %s takes no text value", ncx.ErrWrongType, obj.Name)

	case obj.Kind == schema.KindChoice:
		if ref {
			if !script {
				return nil, fmt.Errorf("%w: variable and file references need script mode", ncx.ErrInvalidValue)
			}
			return p.scriptValue(obj, text)
		}
		target := obj.FindData(text)
		if target == nil || !target.IsEmptyType() {
			return nil, fmt.Errorf("%w: choice %s has no empty member %q", ncx.ErrInvalidValue, obj.Name, text)
		}
		return val.New(target), nil

	case script:
		return p.scriptValue(obj, text)

	case obj.Type.IsSimple() || obj.Kind == schema.KindAnyxml:
		return val.NewLeaf(obj, text)
	}
	return nil, fmt.Errorf("%w: %s %s takes no text value", ncx.ErrWrongType, obj.Kind, obj.Name)
}

func (p *Parser) scriptValue(obj *schema.Object, text string) (*val.Value, error) {
	v, err := p.vars.ScriptValue(obj, text, false)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s: no value for %q", ncx.ErrInternal, obj.Name, text)
	}
	return v, nil
}

// choiceContainer handles a container whose only child is a choice: the
// text names an empty member of one case
func (p *Parser) choiceContainer(obj *schema.Object, text string, script bool) (*val.Value, error) {
	choice := obj.SoleChoice()
	if text == "" {
		return nil, fmt.Errorf("%w: %s needs a value", ncx.ErrEmptyValue, obj.Name)
	}
	out := val.New(obj)
	switch text[0] {
	case '$':
		if !script {
			return nil, fmt.Errorf("%w: variable references need script mode", ncx.ErrInvalidValue)
		}
		member, err := p.scriptValue(choice, text)
		if err != nil {
			return nil, err
		}
		if err := out.AddChild(member); err != nil {
			return nil, err
		}
		return out, nil
	case '@':
		if !script {
			return nil, fmt.Errorf("%w: file references need script mode", ncx.ErrInvalidValue)
		}
		return p.scriptValue(obj, text)
	}
	target := choice.FindData(text)
	if target == nil {
		return nil, fmt.Errorf("%w: choice %s in %s has no member %q", ncx.ErrInvalidValue, choice.Name, obj.Name, text)
	}
	if !target.IsEmptyType() {
		return nil, fmt.Errorf("%w: member %s of choice %s is not an empty leaf", ncx.ErrInvalidValue, target.Name, choice.Name)
	}
	if err := out.AddChild(val.New(target)); err != nil {
		return nil, err
	}
	return out, nil
}

// addSorted inserts child before the first sibling that follows it in
// schema order
func addSorted(parent, child *val.Value) error {
	order := parent.Object().DataChildren()
	pos := slices.Index(order, child.Object())
	if pos < 0 {
		return parent.AddChild(child)
	}
	for i, ch := range parent.Children() {
		if slices.Index(order, ch.Object()) > pos {
			return parent.InsertChild(i, child)
		}
	}
	return parent.AddChild(child)
}
