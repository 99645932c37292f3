package gate

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// inputClosedMsg tells a model that no more keys will arrive.
type inputClosedMsg struct{}

// file is what bubbletea needs to put a terminal into raw mode and to
// interrupt a blocked read. *os.File satisfies it.
type file interface {
	io.ReadWriteCloser
	Fd() uintptr
	Name() string
}

// eofReader calls notify once when the wrapped reader runs dry. bubbletea
// treats end of input as a quiet stop of its read loop, so without it a
// program would wait forever on a closed stdin.
type eofReader struct {
	r      io.Reader
	notify func()
	once   sync.Once
}

func (e *eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if errors.Is(err, io.EOF) {
		e.once.Do(e.notify)
	}
	return n, err
}

// eofFile keeps the file identity of a terminal or pipe while reporting
// end of input.
type eofFile struct {
	file
	eof *eofReader
}

func (f eofFile) Read(p []byte) (int, error) {
	return f.eof.Read(p)
}

func watchInput(in io.Reader, notify func()) io.Reader {
	if in == nil {
		return nil
	}
	eof := &eofReader{r: in, notify: notify}
	if f, ok := in.(file); ok && pollable(f) {
		return eofFile{file: f, eof: eof}
	}
	return eof
}

// pollable reports whether f can be watched for readiness. Regular files
// cannot, and are read directly instead.
func pollable(f file) bool {
	osf, ok := f.(*os.File)
	if !ok {
		return true
	}
	info, err := osf.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&(os.ModeCharDevice|os.ModeNamedPipe) != 0
}

// run drives model on in and out until it quits, input ends or ctx is done.
func run(ctx context.Context, model tea.Model, in io.Reader, out io.Writer) (tea.Model, error) {
	var p *tea.Program
	input := watchInput(in, func() { p.Send(inputClosedMsg{}) })
	p = tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(input),
		tea.WithOutput(out),
		tea.WithoutSignalHandler(),
	)
	final, err := p.Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return final, ctxErr
		}
		return final, err
	}
	return final, nil
}
