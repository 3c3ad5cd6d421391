package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"cloudshelf/pkg/cloudshelf"
)

// KeyValue is the JSON payload of get.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func newGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd, opts.mode)
			if err != nil {
				return err
			}
			defer s.Close()

			value, err := s.Get(cmd.Context(), []byte(args[0]))
			if err != nil {
				return classify("get", err)
			}
			f := opts.formatter(cmd)
			if f.Format == "json" {
				return f.Success(KeyValue{Key: args[0], Value: string(value)})
			}
			return f.Success(string(value))
		},
	}
}

func newSetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value|->",
		Short: "Store a value under a key",
		Long:  "Store a value under a key. A value of - reads the value from stdin.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := []byte(args[1])
			if args[1] == "-" {
				var err error
				if value, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return WrapExitError(ExitFailure, "reading stdin", err)
				}
			}

			s, err := opts.open(cmd, opts.mode)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Set(cmd.Context(), []byte(args[0]), value); err != nil {
				return classify("set", err)
			}
			if err := s.Sync(cmd.Context()); err != nil {
				return classify("sync", err)
			}
			opts.formatter(cmd).VerboseLog("stored %d bytes under %q", len(value), args[0])
			return nil
		},
	}
}

func newDelCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>...",
		Short: "Delete keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd, opts.mode)
			if err != nil {
				return err
			}
			defer s.Close()

			for _, key := range args {
				if err := s.Delete(cmd.Context(), []byte(key)); err != nil {
					return classify("del", err)
				}
			}
			return s.Sync(cmd.Context())
		},
	}
}

func newKeysCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List every key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd, opts.mode)
			if err != nil {
				return err
			}
			defer s.Close()

			keys := []string{}
			for key, err := range s.Keys(cmd.Context()) {
				if err != nil {
					return classify("keys", err)
				}
				keys = append(keys, string(key))
			}
			return opts.formatter(cmd).Success(keys)
		},
	}
}

func newLenCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "len",
		Short: "Print the number of keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd, opts.mode)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.Len(cmd.Context())
			if err != nil {
				return classify("len", err)
			}
			return opts.formatter(cmd).Success(n)
		},
	}
}

func newClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every key",
		Long:  "Delete every key by opening the shelf in mode n. --flag is ignored.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd, cloudshelf.ModeNew)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Sync(cmd.Context())
		},
	}
}

func newVerifyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the shelf can write, read and delete a value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd, opts.mode)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Verify(cmd.Context()); err != nil {
				return classify("verify", err)
			}
			return opts.formatter(cmd).Success(fmt.Sprintf("shelf verified (mode %s)", s.Mode()))
		},
	}
}
