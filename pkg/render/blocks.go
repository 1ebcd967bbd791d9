package render

import (
	"fmt"
	"strings"
)

// Accumulator is a buffered text sink with a stack of quote prefixes.
// Every committed line is prefixed by the concatenation of the currently
// active prefixes, outermost first, producing correctly nested blockquote
// markers. Content stays buffered until String is called, so callers can
// inspect and rewrite a composed block before flushing it.
type Accumulator struct {
	lines []string
	stack []string
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Quoted runs fn with prefix pushed on the stack. The prefix is popped on
// every exit path, including panics and error returns.
func (a *Accumulator) Quoted(prefix string, fn func() error) error {
	a.stack = append(a.stack, prefix)
	defer func() {
		a.stack = a.stack[:len(a.stack)-1]
	}()
	return fn()
}

// Line commits text at the current quote depth. Embedded newlines split into
// individual lines so each one receives the prefix.
func (a *Accumulator) Line(text string) {
	prefix := strings.Join(a.stack, "")
	for _, line := range strings.Split(text, "\n") {
		a.lines = append(a.lines, strings.TrimRight(prefix+line, " "))
	}
}

func (a *Accumulator) Linef(format string, args ...interface{}) {
	a.Line(fmt.Sprintf(format, args...))
}

// Blank commits an empty line at the current quote depth.
func (a *Accumulator) Blank() {
	a.Line("")
}

// Separate commits a blank line only when content precedes it, so blocks are
// separated without the buffer starting on one.
func (a *Accumulator) Separate() {
	if !a.Empty() {
		a.Blank()
	}
}

func (a *Accumulator) Empty() bool {
	return len(a.lines) == 0
}

// String flushes the buffer into a single block of text.
func (a *Accumulator) String() string {
	return strings.Join(a.lines, "\n")
}
