// Package history keeps an append-only JSON-lines log of finished runs.
package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gofrs/flock"

	"github.com/torosent/pipefire/internal/output"
)

// Append adds one report as a single line at the end of path, creating the
// file when needed. Concurrent writers are serialized by a lock file.
func Append(path string, r output.Report) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	line = append(line, '\n')

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer func() { _ = lock.Unlock() }()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append history entry: %w", err)
	}
	return f.Close()
}

// Load returns every report in path, oldest first. A missing file is an
// empty history. Blank lines are skipped; a corrupt line is an error that
// names its line number.
func Load(path string) ([]output.Report, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	defer func() { _ = lock.Unlock() }()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	var reports []output.Report
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for n := 1; scanner.Scan(); n++ {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var r output.Report
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("history line %d: %w", n, err)
		}
		reports = append(reports, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	return reports, nil
}

// Last returns at most n of the newest reports, oldest first.
func Last(reports []output.Report, n int) []output.Report {
	if n <= 0 || len(reports) == 0 {
		return nil
	}
	if len(reports) > n {
		reports = reports[len(reports)-n:]
	}
	return reports
}
