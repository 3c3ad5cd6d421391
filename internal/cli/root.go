// Package cli implements the cloudshelf command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cloudshelf/internal/config"
	"cloudshelf/internal/logging"
	"cloudshelf/pkg/cloudshelf"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config    string
	Flag      string
	Format    string // "json" | "text"
	Verbose   bool
	PromptKey bool

	mode cloudshelf.Mode

	// registry backs the memory provider across commands of one process.
	registry *cloudshelf.MemoryRegistry
	// readKey replaces the terminal prompt behind --prompt-key.
	readKey func() ([]byte, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cloudshelf CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cloudshelf",
		Short: "cloudshelf - persistent key-value shelves",
		Long: `Read and write a shelf: a key-value store kept in a local bbolt or SQLite
file, an S3 bucket or a Redis namespace, with optional compression,
encryption and checksums applied to every value.

--config names a TOML or YAML configuration file. Any other path opens a
local bbolt file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			mode, err := cloudshelf.ParseMode(opts.Flag)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --flag", err)
			}
			opts.mode = mode
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "configuration file, or a local bbolt file (default "+config.DefaultPath+")")
	cmd.PersistentFlags().StringVarP(&opts.Flag, "flag", "f", "c", "open mode: c (create), n (new), w (write) or r (read)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVar(&opts.PromptKey, "prompt-key", false, "read the encryption key from the terminal")

	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newSetCommand(opts))
	cmd.AddCommand(newDelCommand(opts))
	cmd.AddCommand(newKeysCommand(opts))
	cmd.AddCommand(newLenCommand(opts))
	cmd.AddCommand(newClearCommand(opts))
	cmd.AddCommand(newVerifyCommand(opts))
	cmd.AddCommand(newShellCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code. Errors
// are reported in the format selected by --format.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return execute(ctx, &RootOptions{}, args, stdin, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	format := opts.Format
	if !slices.Contains(ValidFormats, format) {
		format = "text"
	}
	f := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
	f.Error(err)
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// Cobra's own flag and argument errors.
		return ExitCommandError
	}
	return exitErr.Code
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	if o.Config == "" || config.IsConfigFile(o.Config) {
		return config.Load(o.Config)
	}
	return cloudshelf.LocalConfig(o.Config), nil
}

// open configures logging from the loaded config and opens the shelf.
func (o *RootOptions) open(cmd *cobra.Command, mode cloudshelf.Mode) (*cloudshelf.Shelf, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading config", err)
	}

	level := cfg.Logging.Level
	if o.Verbose {
		level = "debug"
	}
	logging.InitTo(cmd.ErrOrStderr(), level, cfg.Logging.Format)

	var opts []cloudshelf.Option
	if o.registry != nil {
		opts = append(opts, cloudshelf.WithRegistry(o.registry))
	}
	if o.PromptKey {
		key, err := o.promptKey(cmd)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "reading key", err)
		}
		opts = append(opts, cloudshelf.WithKey(key))
	}

	s, err := cloudshelf.OpenConfig(cmd.Context(), cfg, mode, opts...)
	if err != nil {
		return nil, classify("opening shelf", err)
	}
	o.formatter(cmd).VerboseLog("opened %s shelf in mode %s", cfg.Provider.Name, mode)
	return s, nil
}

func (o *RootOptions) promptKey(cmd *cobra.Command) ([]byte, error) {
	if o.readKey != nil {
		return o.readKey()
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("--prompt-key needs a terminal on stdin")
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Encryption key: ")
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, cloudshelf.ErrNoKey
	}
	return key, nil
}
