// Package execxtest provides a scripted execx.Runner for tests.
package execxtest

import (
	"context"
	"strings"
	"sync"

	"github.com/hayloftlabs/gcr-docker-node-template/internal/execx"
)

// HandlerFunc produces the result of a recorded command.
type HandlerFunc func(cmd execx.Command) ([]byte, error)

type handler struct {
	prefix string
	fn     HandlerFunc
}

// Recorder records every command it is asked to run. Commands without a
// matching handler succeed with empty output.
type Recorder struct {
	mu       sync.Mutex
	commands []execx.Command
	handlers []handler
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

// On registers fn for commands whose rendered line starts with prefix.
// Handlers registered later take precedence.
func (r *Recorder) On(prefix string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, handler{prefix: prefix, fn: fn})
}

// OnOutput makes commands matching prefix print out.
func (r *Recorder) OnOutput(prefix, out string) {
	r.On(prefix, func(execx.Command) ([]byte, error) { return []byte(out), nil })
}

// OnExit makes commands matching prefix exit with code.
func (r *Recorder) OnExit(prefix string, code int) {
	r.On(prefix, func(cmd execx.Command) ([]byte, error) {
		return nil, &execx.ExitError{Command: cmd, Code: code}
	})
}

// Run implements execx.Runner.
func (r *Recorder) Run(_ context.Context, cmd execx.Command) error {
	_, err := r.dispatch(cmd)
	return err
}

// Output implements execx.Runner.
func (r *Recorder) Output(_ context.Context, cmd execx.Command) ([]byte, error) {
	return r.dispatch(cmd)
}

func (r *Recorder) dispatch(cmd execx.Command) ([]byte, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	line := cmd.String()
	var fn HandlerFunc
	for i := len(r.handlers) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, r.handlers[i].prefix) {
			fn = r.handlers[i].fn
			break
		}
	}
	r.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(cmd)
}

// Commands returns the recorded commands in call order.
func (r *Recorder) Commands() []execx.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]execx.Command(nil), r.commands...)
}

// Lines returns the recorded command lines in call order.
func (r *Recorder) Lines() []string {
	cmds := r.Commands()
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = c.String()
	}
	return lines
}

// Count returns how many recorded command lines start with prefix.
func (r *Recorder) Count(prefix string) int {
	n := 0
	for _, l := range r.Lines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}
