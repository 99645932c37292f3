// Package request loads the raw request template and builds the pipelined batch payload.
package request

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// FileName is the template file looked up beside the executable.
const FileName = "req.txt"

// ErrEmptyRequest is returned when the template file has no content.
var ErrEmptyRequest = errors.New("request template is empty")

// DefaultFor returns the plaintext keep-alive request written for a fresh install.
func DefaultFor(target string) string {
	return "GET /plaintext HTTP/1.1\r\nHost: " + target + "\r\nConnection: keep-alive\r\n\r\n"
}

// DefaultPath returns the template path beside the running executable.
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), FileName), nil
}

// LoadOrCreate reads the template at path. When the file does not exist the
// fallback is written there for future edits and returned. Creation is
// guarded by a lock file so concurrent instances agree on one template.
func LoadOrCreate(path, fallback string) (data []byte, created bool, err error) {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, false, fmt.Errorf("lock %s: %w", path, err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err = os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) == 0 {
			return nil, false, fmt.Errorf("%s: %w", path, ErrEmptyRequest)
		}
		return data, false, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	if fallback == "" {
		return nil, false, ErrEmptyRequest
	}
	if err := os.WriteFile(path, []byte(fallback), 0o644); err != nil {
		return nil, false, fmt.Errorf("write %s: %w", path, err)
	}
	return []byte(fallback), true, nil
}

// Batch returns n back-to-back copies of req in one buffer.
func Batch(req []byte, n int) []byte {
	if n < 1 {
		n = 1
	}
	out := make([]byte, len(req)*n)
	for i := 0; i < n; i++ {
		copy(out[i*len(req):], req)
	}
	return out
}
