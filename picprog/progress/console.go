package progress

import (
	"fmt"
	"io"
	"strings"
)

// Console draws an in-place "[ 42%]" indicator, rewriting it with
// backspaces. It writes to a terminal, usually stderr.
type Console struct {
	w     io.Writer
	width int // length of the indicator on screen
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Progress(percent int) {
	c.erase()
	c.width, _ = fmt.Fprintf(c.w, "[%2d%%]", percent)
}

// Done erases the indicator.
func (c *Console) Done() {
	c.erase()
}

func (c *Console) erase() {
	if c.width > 0 {
		fmt.Fprint(c.w, strings.Repeat("\b", c.width))
		c.width = 0
	}
}

// Client emits the line oriented token protocol read by front ends:
// "@000" to "@100", then "@FIN".
type Client struct {
	w io.Writer
}

func NewClient(w io.Writer) *Client {
	return &Client{w: w}
}

func (c *Client) Progress(percent int) {
	fmt.Fprintf(c.w, "@%03d\n", percent)
}

func (c *Client) Done() {
	fmt.Fprint(c.w, "@FIN\n")
}
