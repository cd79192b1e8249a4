// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package runstack

import (
	"fmt"

	ncx "github.com/netascode/go-ncx"
)

// Cond evaluates a condition; it is only called when the result matters
type Cond func() (bool, error)

type blockKind int

const (
	blockIf blockKind = iota
	blockLoop
)

type ifState int

const (
	stateIf ifState = iota
	stateElif
	stateElse
)

type loopState int

const (
	loopCollecting loopState = iota
	loopLooping
)

// block is one open if or while
type block struct {
	kind blockKind
	line int
	// cur is the truth of the branch being run
	cur bool

	// if
	state ifState
	used  bool

	// while
	loop    loopState
	cond    Cond
	max     int
	count   int
	first   int
	last    int
	pos     int
	started bool
}

func (b *block) keyword() string {
	if b.kind == blockLoop {
		return "while"
	}
	return "if"
}

func (f *Frame) last() *block {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[len(f.blocks)-1]
}

func (f *Frame) innerLoop() *block {
	for i := len(f.blocks) - 1; i >= 0; i-- {
		if f.blocks[i].kind == blockLoop {
			return f.blocks[i]
		}
	}
	return nil
}

func (f *Frame) numLoops() int {
	n := 0
	for _, b := range f.blocks {
		if b.kind == blockLoop {
			n++
		}
	}
	return n
}

// driver returns the innermost loop that is replaying lines
func (f *Frame) driver() *block {
	for i := len(f.blocks) - 1; i >= 0; i-- {
		if b := f.blocks[i]; b.kind == blockLoop && b.loop == loopLooping {
			return b
		}
	}
	return nil
}

func (f *Frame) remove(b *block) {
	for i, cur := range f.blocks {
		if cur == b {
			f.blocks = append(f.blocks[:i], f.blocks[i+1:]...)
			break
		}
	}
	if f.numLoops() == 0 {
		f.buf = nil
	}
}

func condAnd(blocks []*block) bool {
	for _, b := range blocks {
		if !b.cur {
			return false
		}
	}
	return true
}

// CondState reports whether the current line should run: every open block
// of the current frame is in a true branch
func (s *Stack) CondState() bool {
	return condAnd(s.current().blocks)
}

// IfUsed reports whether a branch of the innermost if block already ran
func (s *Stack) IfUsed() bool {
	b := s.current().last()
	return b != nil && b.kind == blockIf && b.used
}

func (s *Stack) lineNo() int {
	return s.current().lineno
}

// If opens an if block; cond is evaluated only when the enclosing blocks
// are running
func (s *Stack) If(cond Cond) error {
	f := s.current()
	truth := false
	if condAnd(f.blocks) {
		var err error
		if truth, err = cond(); err != nil {
			return fmt.Errorf("%w: if: %w", ncx.ErrEvalFailed, err)
		}
	}
	f.blocks = append(f.blocks, &block{kind: blockIf, line: s.lineNo(), state: stateIf, used: truth, cur: truth})
	return nil
}

// Elif switches the innermost if block to a new branch; cond is evaluated
// only when no earlier branch ran
func (s *Stack) Elif(cond Cond) error {
	f := s.current()
	b := f.last()
	if b == nil || b.kind != blockIf {
		s.logger.Error("unexpected elif", "line", s.lineNo())
		return fmt.Errorf("%w: unexpected 'elif'", ncx.ErrBadConditional)
	}
	if b.state == stateElse {
		s.logger.Error("elif after else", "line", s.lineNo())
		return fmt.Errorf("%w: unexpected 'elif'; 'else' already active", ncx.ErrBadConditional)
	}
	b.state = stateElif
	if b.used || !condAnd(f.blocks[:len(f.blocks)-1]) {
		b.cur = false
		return nil
	}
	truth, err := cond()
	if err != nil {
		b.cur = false
		return fmt.Errorf("%w: elif: %w", ncx.ErrEvalFailed, err)
	}
	b.used, b.cur = truth, truth
	return nil
}

// Else switches the innermost if block to its final branch
func (s *Stack) Else() error {
	b := s.current().last()
	if b == nil || b.kind != blockIf {
		s.logger.Error("unexpected else", "line", s.lineNo())
		return fmt.Errorf("%w: unexpected 'else'", ncx.ErrBadConditional)
	}
	if b.state == stateElse {
		s.logger.Error("second else", "line", s.lineNo())
		return fmt.Errorf("%w: unexpected 'else'; 'else' already active", ncx.ErrBadConditional)
	}
	b.state = stateElse
	b.cur = !b.used
	b.used = true
	return nil
}

// While opens a loop block
//
// The body lines that follow run once while they are collected; after the
// matching End they are replayed as long as cond holds. limit caps the
// passes in total, collecting pass included, so a limit of N means at most
// N-1 replays. A limit of 0 uses the configured loop limit. cond is not
// evaluated when the enclosing blocks are not running.
func (s *Stack) While(cond Cond, limit int) error {
	if limit < 0 || limit > s.config.MaxLoops {
		return fmt.Errorf("%w: max=%d, allowed 1..%d", ncx.ErrLoopLimit, limit, s.config.MaxLoops)
	}
	if limit == 0 {
		limit = s.config.MaxLoops
	}
	f := s.current()
	truth := false
	if condAnd(f.blocks) {
		var err error
		if truth, err = cond(); err != nil {
			return fmt.Errorf("%w: while: %w", ncx.ErrEvalFailed, err)
		}
	}

	b := &block{kind: blockLoop, line: s.lineNo(), loop: loopCollecting, cond: cond, max: limit, cur: truth}
	if s.src == SourceLoop {
		b.first = f.driver().pos + 1
	} else {
		b.first = len(f.buf)
	}
	f.blocks = append(f.blocks, b)
	return nil
}

// End closes the innermost block; a running loop starts replaying
func (s *Stack) End() error {
	f := s.current()
	b := f.last()
	if b == nil {
		s.logger.Error("unexpected end", "line", s.lineNo())
		return fmt.Errorf("%w: unexpected 'end'", ncx.ErrBadConditional)
	}
	if b.kind == blockIf || !b.cur {
		f.remove(b)
		return nil
	}
	if b.loop != loopCollecting {
		return fmt.Errorf("%w: 'end' for a loop that is already replaying", ncx.ErrInternal)
	}

	// the end line itself is the last collected line
	endIdx := len(f.buf) - 1
	if s.src == SourceLoop {
		endIdx = f.driver().pos
	}
	if f.numLoops() == 1 && endIdx >= 0 && endIdx == len(f.buf)-1 {
		f.buf = f.buf[:endIdx]
	}
	b.last = endIdx - 1
	b.loop = loopLooping
	b.count = 1
	b.started = false
	s.src = SourceLoop
	return nil
}

// SaveLine records a line read from a script or the user when a loop is
// collecting its body; replayed lines are not saved again
func (s *Stack) SaveLine(line string) {
	if s.src == SourceLoop {
		return
	}
	f := s.current()
	if b := f.innerLoop(); b != nil && b.loop == loopCollecting {
		f.buf = append(f.buf, line)
	}
}

// loopLine returns the next replayed line; ok is false when the innermost
// loop ended and the source changed
func (s *Stack) loopLine(f *Frame) (string, bool, error) {
	b := f.innerLoop()
	if b == nil {
		s.resetSource()
		return "", false, nil
	}

	if b.loop == loopCollecting {
		// an inner loop collecting inside a replaying outer loop
		d := f.driver()
		if d == nil || d.pos >= d.last {
			f.remove(b)
			s.resetSource()
			return "", false, fmt.Errorf("%w: while block starting at line %d has no end", ncx.ErrBadConditional, b.line)
		}
		d.pos++
		return f.buf[d.pos], true, nil
	}

	for {
		if b.started && b.pos < b.last {
			b.pos++
			return f.buf[b.pos], true, nil
		}
		// start of a pass
		if b.count >= b.max {
			s.endLoop(f, b, "max")
			return "", false, nil
		}
		truth, err := b.cond()
		if err != nil {
			s.endLoop(f, b, "error")
			return "", false, fmt.Errorf("%w: while: %w", ncx.ErrEvalFailed, err)
		}
		if !truth {
			s.endLoop(f, b, "condition")
			return "", false, nil
		}
		b.count++
		b.started = true
		b.pos = b.first - 1
		if b.first > b.last {
			// empty body
			b.started = false
			continue
		}
	}
}

func (s *Stack) endLoop(f *Frame, b *block, reason string) {
	s.logger.Debug("loop ended", "line", b.line, "passes", b.count, "reason", reason)
	f.remove(b)
	s.resetSource()
	if s.onLoopEnd != nil {
		s.onLoopEnd(LoopEnd{Passes: b.count, Reason: reason})
	}
}
