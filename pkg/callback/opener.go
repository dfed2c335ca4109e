package callback

import (
	"context"
	"errors"
	"net/url"
	"os/exec"
	"strings"
)

// DefaultOpenCommand is used when no command is configured.
const DefaultOpenCommand = "xdg-open"

var errSchemeNotAllowed = errors.New("scheme not allowed")

// ExecOpener opens URLs by running an external command with the URL as its
// only argument.
type ExecOpener struct {
	Command string
	Schemes []string

	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

// NewExecOpener builds an opener for the given command and scheme allowlist.
// An empty allowlist permits every scheme.
func NewExecOpener(command string, schemes []string) *ExecOpener {
	if command == "" {
		command = DefaultOpenCommand
	}
	normalized := make([]string, 0, len(schemes))
	for _, s := range schemes {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			normalized = append(normalized, s)
		}
	}
	return &ExecOpener{
		Command:  command,
		Schemes:  normalized,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// CanOpen reports whether the scheme is allowed and the command is installed.
func (o *ExecOpener) CanOpen(_ context.Context, raw string) (bool, error) {
	if !o.allowed(raw) {
		return false, nil
	}
	if _, err := o.lookPath(o.Command); err != nil {
		return false, nil
	}
	return true, nil
}

// Open runs the command for raw.
func (o *ExecOpener) Open(ctx context.Context, raw string) error {
	if !o.allowed(raw) {
		return errSchemeNotAllowed
	}
	return o.run(ctx, o.Command, raw)
}

func (o *ExecOpener) allowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return false
	}
	if len(o.Schemes) == 0 {
		return true
	}
	scheme := strings.ToLower(u.Scheme)
	for _, s := range o.Schemes {
		if s == scheme {
			return true
		}
	}
	return false
}
