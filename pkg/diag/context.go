package diag

import (
	"fmt"
	"strings"
)

// Context is a range of text in a source code. It is used for errors that can
// be associated with a part of the source, like lexical and parse errors.
type Context struct {
	Name   string
	Source string
	Ranging
}

// NewContext creates a new Context.
func NewContext(name, source string, r Ranger) *Context {
	return &Context{name, source, r.Range()}
}

// Line returns the 1-based line number the range starts on.
func (c *Context) Line() int {
	return strings.Count(c.Source[:c.clampedFrom()], "\n") + 1
}

// Column returns the 0-based byte column the range starts on.
func (c *Context) Column() int {
	return c.clampedFrom() - c.lineStart()
}

func (c *Context) clampedFrom() int {
	if c.From < 0 {
		return 0
	}
	if c.From > len(c.Source) {
		return len(c.Source)
	}
	return c.From
}

func (c *Context) lineStart() int {
	return strings.LastIndexByte(c.Source[:c.clampedFrom()], '\n') + 1
}

func (c *Context) lineEnd() int {
	to := c.To
	if to < c.clampedFrom() {
		to = c.clampedFrom()
	}
	if to > len(c.Source) {
		to = len(c.Source)
	}
	if i := strings.IndexByte(c.Source[to:], '\n'); i != -1 {
		return i + to
	}
	return len(c.Source)
}

// Show renders the culprit line with the offending range underlined by
// carets, the way compiler diagnostics are printed to the user:
//
//	contract test-cities {}
//	             ^
func (c *Context) Show() string {
	line := c.Source[c.lineStart():c.lineEnd()]
	column := c.Column()

	// Deindent the line so the caret lines up with the trimmed excerpt.
	trimmed := strings.TrimLeft(line, " \t")
	column -= len(line) - len(trimmed)
	if column < 0 {
		column = 0
	}

	width := c.To - c.From
	if width < 1 {
		width = 1
	}
	if column+width > len(trimmed) {
		width = len(trimmed) - column
		if width < 1 {
			width = 1
		}
	}

	return fmt.Sprintf("%s\n%s%s",
		trimmed, strings.Repeat(" ", column), strings.Repeat("^", width))
}
