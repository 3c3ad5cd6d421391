package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cloudshelf/pkg/cloudshelf"
)

const shellPrompt = "cloudshelf> "

// ShellContext holds the state available to shell command handlers.
type ShellContext struct {
	Ctx      context.Context
	Shelf    *cloudshelf.Shelf
	Terminal *term.Terminal
	Args     []string
}

// ShellHandler runs one shell command. Returns true if the shell should
// exit.
type ShellHandler func(ctx ShellContext) bool

// ShellCommand describes a registered shell command.
type ShellCommand struct {
	Usage   string // full usage for help (e.g., "/get <key>"); defaults to command name
	Help    string
	Handler ShellHandler
}

// ShellRegistry maps command names to handlers and produces help text in
// registration order. It is safe for concurrent use.
type ShellRegistry struct {
	mu       sync.RWMutex
	commands map[string]ShellCommand
	order    []string
}

// NewShellRegistry creates an empty registry.
func NewShellRegistry() *ShellRegistry {
	return &ShellRegistry{commands: make(map[string]ShellCommand)}
}

// Register adds a command. The name includes the leading slash.
// Registering the same name twice overwrites the previous entry. Panics if
// cmd.Handler is nil.
func (r *ShellRegistry) Register(name string, cmd ShellCommand) {
	if cmd.Handler == nil {
		panic("cli: Register called with nil handler for " + name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; !exists {
		r.order = append(r.order, name)
	}
	r.commands[name] = cmd
}

// Dispatch parses a command line and calls the matching handler.
// Returns true if the shell should exit.
func (r *ShellRegistry) Dispatch(ctx context.Context, line string, shelf *cloudshelf.Shelf, terminal *term.Terminal) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	name := parts[0]

	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()

	if !ok {
		_, _ = fmt.Fprintf(terminal, "Unknown command: %s (try /help)\r\n", name)
		return false
	}
	return cmd.Handler(ShellContext{
		Ctx:      ctx,
		Shelf:    shelf,
		Terminal: terminal,
		Args:     parts[1:],
	})
}

// HelpText lists the registered commands in registration order.
func (r *ShellRegistry) HelpText() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	b.WriteString("Commands:\r\n")
	for _, name := range r.order {
		cmd := r.commands[name]
		display := name
		if cmd.Usage != "" {
			display = cmd.Usage
		}
		_, _ = fmt.Fprintf(&b, "  %-20s %s\r\n", display, cmd.Help)
	}
	return b.String()
}

// RegisterBuiltins registers the shelf commands and /help and /quit.
func (r *ShellRegistry) RegisterBuiltins() {
	r.Register("/get", ShellCommand{
		Usage:   "/get <key>",
		Help:    "print the value of a key",
		Handler: handleGet,
	})
	r.Register("/set", ShellCommand{
		Usage:   "/set <key> <value>",
		Help:    "store a value (the rest of the line)",
		Handler: handleSet,
	})
	r.Register("/del", ShellCommand{
		Usage:   "/del <key>",
		Help:    "delete a key",
		Handler: handleDel,
	})
	r.Register("/keys", ShellCommand{
		Help:    "list every key",
		Handler: handleKeys,
	})
	r.Register("/len", ShellCommand{
		Help:    "print the number of keys",
		Handler: handleLen,
	})
	r.Register("/help", ShellCommand{
		Help: "show this help",
		Handler: func(ctx ShellContext) bool {
			_, _ = fmt.Fprint(ctx.Terminal, r.HelpText())
			return false
		},
	})
	r.Register("/quit", ShellCommand{
		Help:    "leave the shell",
		Handler: func(ShellContext) bool { return true },
	})
}

func handleGet(ctx ShellContext) bool {
	if len(ctx.Args) != 1 {
		_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /get <key>")
		return false
	}
	key := ctx.Args[0]
	value, err := ctx.Shelf.Get(ctx.Ctx, []byte(key))
	switch {
	case errors.Is(err, cloudshelf.ErrKeyNotFound):
		_, _ = fmt.Fprintf(ctx.Terminal, "%s: not found\r\n", key)
	case err != nil:
		_, _ = fmt.Fprintf(ctx.Terminal, "Error: %v\r\n", err)
	default:
		_, _ = fmt.Fprintf(ctx.Terminal, "%s = %s\r\n", key, value)
	}
	return false
}

func handleSet(ctx ShellContext) bool {
	if len(ctx.Args) < 2 {
		_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /set <key> <value>")
		return false
	}
	key := ctx.Args[0]
	value := strings.Join(ctx.Args[1:], " ")
	if err := ctx.Shelf.Set(ctx.Ctx, []byte(key), []byte(value)); err != nil {
		_, _ = fmt.Fprintf(ctx.Terminal, "Error: %v\r\n", err)
		return false
	}
	_, _ = fmt.Fprintf(ctx.Terminal, "Set %s = %s\r\n", key, value)
	return false
}

func handleDel(ctx ShellContext) bool {
	if len(ctx.Args) != 1 {
		_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /del <key>")
		return false
	}
	key := ctx.Args[0]
	err := ctx.Shelf.Delete(ctx.Ctx, []byte(key))
	switch {
	case errors.Is(err, cloudshelf.ErrKeyNotFound):
		_, _ = fmt.Fprintf(ctx.Terminal, "%s: not found\r\n", key)
	case err != nil:
		_, _ = fmt.Fprintf(ctx.Terminal, "Error: %v\r\n", err)
	default:
		_, _ = fmt.Fprintf(ctx.Terminal, "Deleted %s\r\n", key)
	}
	return false
}

func handleKeys(ctx ShellContext) bool {
	n := 0
	for key, err := range ctx.Shelf.Keys(ctx.Ctx) {
		if err != nil {
			_, _ = fmt.Fprintf(ctx.Terminal, "Error: %v\r\n", err)
			return false
		}
		_, _ = fmt.Fprintf(ctx.Terminal, "  %s\r\n", key)
		n++
	}
	if n == 0 {
		_, _ = fmt.Fprintln(ctx.Terminal, "Shelf: (empty)")
	}
	return false
}

func handleLen(ctx ShellContext) bool {
	n, err := ctx.Shelf.Len(ctx.Ctx)
	if err != nil {
		_, _ = fmt.Fprintf(ctx.Terminal, "Error: %v\r\n", err)
		return false
	}
	_, _ = fmt.Fprintf(ctx.Terminal, "%d\r\n", n)
	return false
}

// readWriter combines separate read and write halves into an io.ReadWriter.
type readWriter struct {
	io.Reader
	io.Writer
}

// runShell reads command lines from rw until /quit or end of input.
func runShell(ctx context.Context, rw io.ReadWriter, shelf *cloudshelf.Shelf, reg *ShellRegistry) error {
	terminal := term.NewTerminal(rw, shellPrompt)
	for {
		line, err := terminal.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if reg.Dispatch(ctx, line, shelf, terminal) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func newShellCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Open an interactive shell on the shelf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd, opts.mode)
			if err != nil {
				return err
			}
			defer s.Close()

			in := cmd.InOrStdin()
			if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				state, err := term.MakeRaw(int(f.Fd()))
				if err != nil {
					return WrapExitError(ExitFailure, "setting raw mode", err)
				}
				defer term.Restore(int(f.Fd()), state)
			}

			reg := NewShellRegistry()
			reg.RegisterBuiltins()
			if err := runShell(cmd.Context(), readWriter{in, cmd.OutOrStdout()}, s, reg); err != nil {
				return classify("shell", err)
			}
			return s.Sync(cmd.Context())
		},
	}
}
