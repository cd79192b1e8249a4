// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

// Package runstack tracks nested script execution.
//
// A Stack holds one Frame per running script on top of the interactive
// level 0. Every frame owns its positional parameters, its local variables
// and its open if and while blocks. The stack hands out the next line to
// execute from the innermost script or from the buffer of a replaying while
// loop; lines typed by the user are read by the caller.
//
// Typical driver loop:
//
//	for {
//	    line, err := stack.NextLine()
//	    if errors.Is(err, ncx.ErrEOF) {
//	        // read from the user, or stop
//	    }
//	    stack.SaveLine(line.Text)
//	    if stack.CondState() {
//	        // execute
//	    }
//	}
package runstack

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	ncx "github.com/netascode/go-ncx"
	"github.com/netascode/go-ncx/vars"
)

// Source is where the next line comes from
type Source int

const (
	// SourceUser means the caller reads the next line
	SourceUser Source = iota
	// SourceScript means the next line is read from the current script
	SourceScript
	// SourceLoop means the next line is replayed from a loop buffer
	SourceLoop
)

func (s Source) String() string {
	switch s {
	case SourceUser:
		return "user"
	case SourceScript:
		return "script"
	case SourceLoop:
		return "loop"
	}
	return fmt.Sprintf("source(%d)", int(s))
}

// Line is one command line handed to the caller
type Line struct {
	Text   string
	Source Source
	// Script is the source name of the frame the line belongs to
	Script string
	// Number is the line number in the script; 0 for replayed lines
	Number int
	Level  int
}

// Frame is one running script
type Frame struct {
	source string
	sc     *bufio.Scanner
	closer io.Closer
	lineno int

	parms, locals vars.Queue

	blocks []*block
	// buf holds the lines collected by the loops of this frame; nested
	// loops index into the buffer of the outermost one
	buf []string
}

// Parms returns the positional parameters of the frame
func (f *Frame) Parms() *vars.Queue { return &f.parms }

// Locals returns the local variables of the frame
func (f *Frame) Locals() *vars.Queue { return &f.locals }

// Source returns the script name the frame was pushed with
func (f *Frame) Source() string { return f.source }

// LoopEnd describes a finished while loop
type LoopEnd struct {
	// Passes is the number of times the loop body ran
	Passes int
	// Reason is "condition", "max" or "error"
	Reason string
}

// Stack is the script run stack of one session
type Stack struct {
	zero   Frame
	frames []*Frame
	src    Source
	cancel bool

	config    *ncx.Config
	store     *vars.Store
	logger    ncx.Logger
	onLoopEnd func(LoopEnd)
}

// WithConfig sets the session configuration
func WithConfig(cfg *ncx.Config) func(*Stack) {
	return func(s *Stack) {
		s.config = cfg
	}
}

// WithVars sets the variable store whose scope follows the current frame
func WithVars(store *vars.Store) func(*Stack) {
	return func(s *Stack) {
		s.store = store
	}
}

// WithLogger sets the logger
func WithLogger(l ncx.Logger) func(*Stack) {
	return func(s *Stack) {
		s.logger = l
	}
}

// WithLoopEnd registers a function called whenever a while loop finishes
func WithLoopEnd(fn func(LoopEnd)) func(*Stack) {
	return func(s *Stack) {
		s.onLoopEnd = fn
	}
}

// New creates an empty Stack at level 0
func New(opts ...func(*Stack)) *Stack {
	s := &Stack{
		config: ncx.DefaultConfig(),
		logger: &ncx.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = vars.New(vars.WithConfig(s.config), vars.WithLogger(s.logger))
	}
	return s
}

// Vars returns the variable store
func (s *Stack) Vars() *vars.Store { return s.store }

// Level returns the script nesting level; 0 is the interactive level
func (s *Stack) Level() int { return len(s.frames) }

// Source returns where the next line comes from
func (s *Stack) Source() Source { return s.src }

// Frame returns the current script frame, or nil at level 0
func (s *Stack) Frame() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func (s *Stack) current() *Frame {
	if f := s.Frame(); f != nil {
		return f
	}
	return &s.zero
}

// Push starts a script read from r; source names it in messages and
// becomes $0, args become $1..$9
//
// r is closed when the frame is popped if it implements io.Closer.
// Fails with ncx.ErrNestTooDeep when the configured nesting depth would be
// exceeded.
func (s *Stack) Push(source string, r io.Reader, args ...string) error {
	if len(s.frames) >= s.config.MaxNest {
		return fmt.Errorf("%w: cannot run %s at level %d", ncx.ErrNestTooDeep, source, len(s.frames)+1)
	}
	if len(args) > ncx.MaxScriptParms {
		return fmt.Errorf("%w: %d script parameters, at most %d allowed", ncx.ErrInvalidValue, len(args), ncx.MaxScriptParms)
	}

	f := &Frame{source: source, sc: bufio.NewScanner(r)}
	if c, ok := r.(io.Closer); ok {
		f.closer = c
	}
	s.frames = append(s.frames, f)
	s.store.SetScope(f)
	for i, value := range append([]string{source}, args...) {
		if err := s.store.SetString(strconv.Itoa(i), value, vars.KindPositional); err != nil {
			_ = s.Pop()
			return err
		}
	}
	s.src = SourceScript
	s.logger.Debug("starting script", "level", len(s.frames), "script", source)
	return nil
}

// Pop ends the current script
//
// Blocks left open by the script are reported as ncx.ErrBadConditional
// findings; the frame is removed either way.
func (s *Stack) Pop() error {
	f := s.Frame()
	if f == nil {
		return fmt.Errorf("%w: no script to end", ncx.ErrInternal)
	}
	s.frames = s.frames[:len(s.frames)-1]
	s.logger.Debug("ending script", "level", len(s.frames)+1, "script", f.source)

	errs := &ncx.Error{Operation: "end script " + f.source}
	for _, b := range f.blocks {
		errs.Add(ncx.ErrorModel{
			Status:  ncx.ErrBadConditional,
			Name:    b.keyword(),
			Message: fmt.Sprintf("%s block starting at line %d has no end", b.keyword(), b.line),
		})
		s.logger.Error("unterminated block", "script", f.source, "block", b.keyword(), "line", b.line)
	}
	if f.closer != nil {
		_ = f.closer.Close()
	}
	for _, v := range append(f.parms.Vars(), f.locals.Vars()...) {
		v.Value.Discard()
	}

	if next := s.Frame(); next != nil {
		s.store.SetScope(next)
	} else {
		s.store.SetScope(nil)
	}
	s.resetSource()
	return errs.Err()
}

// resetSource derives the line source from the innermost loop of the
// current frame
func (s *Stack) resetSource() {
	if l := s.current().innerLoop(); l != nil && l.loop == loopLooping {
		s.src = SourceLoop
		return
	}
	if len(s.frames) > 0 {
		s.src = SourceScript
		return
	}
	s.src = SourceUser
}

// Cancel marks the stack for unwinding; the next call to NextLine pops
// every script frame and drops open loops
func (s *Stack) Cancel() {
	if len(s.frames) > 0 || len(s.zero.blocks) > 0 {
		s.cancel = true
	}
}

// Canceled reports whether the stack is marked for unwinding
func (s *Stack) Canceled() bool { return s.cancel }

// ClearCancel removes the cancel mark
func (s *Stack) ClearCancel() {
	s.cancel = false
	if len(s.frames) == 0 {
		s.resetSource()
	}
}

func (s *Stack) unwind() {
	for len(s.frames) > 0 {
		f := s.Frame()
		if err := s.Pop(); err != nil {
			s.logger.Debug("dropping open blocks of canceled script", "script", f.source, "error", err)
		}
	}
	s.zero.blocks = nil
	s.zero.buf = nil
	s.cancel = false
	s.resetSource()
}

// NextLine returns the next line to run
//
// Lines come from a replaying loop or the current script. A script that
// reaches its end is popped and reading continues in the frame below.
// Returns ncx.ErrEOF when the caller has to supply the next line itself,
// ncx.ErrCanceled once after a canceled stack was unwound and
// ncx.ErrReadFailed when a script could not be read; that script is popped.
// Unterminated blocks of a finished script are returned as an error too;
// calling NextLine again continues with the frame below.
func (s *Stack) NextLine() (Line, error) {
	for {
		if s.cancel {
			s.logger.Info("script canceled", "level", len(s.frames))
			s.unwind()
			return Line{}, ncx.ErrCanceled
		}
		f := s.current()

		switch s.src {
		case SourceLoop:
			text, ok, err := s.loopLine(f)
			if err != nil {
				return Line{}, err
			}
			if ok {
				return Line{Text: text, Source: SourceLoop, Script: f.source, Level: len(s.frames)}, nil
			}

		case SourceScript:
			text, err := f.readLine()
			if errors.Is(err, io.EOF) {
				if err := s.Pop(); err != nil {
					return Line{}, err
				}
				continue
			}
			if err != nil {
				s.logger.Error("script read failed", "script", f.source, "line", f.lineno, "error", err)
				if perr := s.Pop(); perr != nil {
					s.logger.Debug("dropping open blocks of failed script", "script", f.source, "error", perr)
				}
				return Line{}, fmt.Errorf("%w: %s: %w", ncx.ErrReadFailed, f.source, err)
			}
			s.logger.Debug("run line", "script", f.source, "line", f.lineno, "cmd", text)
			return Line{Text: text, Source: SourceScript, Script: f.source, Number: f.lineno, Level: len(s.frames)}, nil

		default:
			return Line{}, ncx.ErrEOF
		}
	}
}

// readLine returns the next command of the script, joining continuation
// lines and skipping blank and comment lines. io.EOF marks the end.
func (f *Frame) readLine() (string, error) {
	var cmd strings.Builder
	started := false
	for f.sc.Scan() {
		f.lineno++
		line := strings.TrimRight(f.sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if started {
				return cmd.String(), nil
			}
			continue
		}
		if !started && trimmed[0] == '#' {
			continue
		}
		started = true
		if strings.HasSuffix(line, `\`) {
			cmd.WriteString(line[:len(line)-1])
			continue
		}
		cmd.WriteString(line)
		return cmd.String(), nil
	}
	if err := f.sc.Err(); err != nil {
		return "", err
	}
	if started {
		// script ended on a continuation line
		return cmd.String(), nil
	}
	return "", io.EOF
}
