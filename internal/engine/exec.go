package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/spherical/smartpdf/internal/domain"
)

const (
	stderrTailSize = 4096
	waitDelay      = 5 * time.Second

	exitNotFound  = 127
	exitCannotRun = 126
)

// command describes one subprocess invocation.
type command struct {
	Name   string
	Args   []string
	Dir    string
	Stdout io.Writer
}

func (c command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// runCommand executes c and maps the result to an Outcome. Ordinary failures,
// including a missing executable, never produce a Go error.
func runCommand(ctx context.Context, c command) domain.Outcome {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}
	stderr := &tailBuffer{max: stderrTailSize}
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return domain.Outcome{Succeeded: true}
	}

	out := domain.Outcome{ExitStatus: 1, Detail: strings.TrimSpace(stderr.String())}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(err, exec.ErrNotFound):
		out.ExitStatus = exitNotFound
		out.Detail = fmt.Sprintf("%s: executable not found", c.Name)
	case errors.As(err, &exitErr):
		if code := exitErr.ExitCode(); code > 0 {
			out.ExitStatus = code
		}
	default:
		out.ExitStatus = exitCannotRun
		out.Detail = err.Error()
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out.TimedOut = true
	}
	if out.Detail == "" {
		out.Detail = err.Error()
	}
	return out
}

// lookPath reports whether an executable can be found.
func lookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found on PATH: %w", name, err)
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
