// Package console serializes human-facing output lines and colours them by tone.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Tone selects the colour of a line.
type Tone int

const (
	ToneInfo Tone = iota
	ToneWarn
	ToneError
	TonePayload   // request/response bodies
	ToneStarted   // sending-started progress
	ToneFinished  // connection-finished milestones
	ToneSnapshot  // throughput snapshots
	ToneHighlight // key result lines
)

var palette = map[Tone]lipgloss.Color{
	ToneInfo:      lipgloss.Color("#BCBCBC"),
	ToneWarn:      lipgloss.Color("#FFAF00"),
	ToneError:     lipgloss.Color("#FF5F87"),
	TonePayload:   lipgloss.Color("#5F87FF"),
	ToneStarted:   lipgloss.Color("#AF8700"),
	ToneFinished:  lipgloss.Color("#AF0000"),
	ToneSnapshot:  lipgloss.Color("#04B575"),
	ToneHighlight: lipgloss.Color("#00AFAF"),
}

// Console writes whole lines under a single mutex so concurrent workers
// never interleave partial output.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	styles map[Tone]lipgloss.Style
}

// New returns a Console writing to w. When color is false lines are written verbatim.
func New(w io.Writer, color bool) *Console {
	if w == nil {
		w = io.Discard
	}
	c := &Console{w: w}
	if color {
		r := lipgloss.NewRenderer(w)
		c.styles = make(map[Tone]lipgloss.Style, len(palette))
		for tone, col := range palette {
			c.styles[tone] = r.NewStyle().Foreground(col)
		}
	}
	return c
}

// Discard is a Console that drops everything.
var Discard = New(io.Discard, false)

// Logf formats and writes one line.
func (c *Console) Logf(tone Tone, format string, args ...any) {
	c.Println(tone, fmt.Sprintf(format, args...))
}

// Println writes text followed by a newline.
func (c *Console) Println(tone Tone, text string) {
	if c == nil {
		return
	}
	if style, ok := c.styles[tone]; ok && text != "" {
		text = style.Render(text)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, text)
}

// Clear erases the terminal and homes the cursor.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.w, "\x1b[2J\x1b[H")
}

// Writer exposes the underlying writer for callers that render blocks themselves.
func (c *Console) Writer() io.Writer {
	return c.w
}

var numbers = message.NewPrinter(language.English)

// Count renders n with thousands separators, e.g. 8,000.
func Count(n int64) string {
	return numbers.Sprintf("%d", n)
}

// CountOrInfinity renders n, or ∞ when n is negative.
func CountOrInfinity(n int64) string {
	if n < 0 {
		return "∞"
	}
	return Count(n)
}
