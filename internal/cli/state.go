package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"llamabind/internal/boundary"
)

func stateCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Save or restore the runtime state of a context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.New("state requires a subcommand: save|load")
		},
	}
	cmd.AddCommand(stateSaveCmd(cfg), stateLoadCmd(cfg))
	return cmd
}

func stateSaveCmd(cfg *Config) *cobra.Command {
	var (
		mf     modelFlags
		out    string
		mode   string
		prompt string
	)
	cmd := &cobra.Command{
		Use:     "save",
		Short:   "Evaluate an optional prompt and write the context state to a file",
		Example: "  llamabind state save -m model.gguf -p \"system prompt\" -o session.bin",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("an output file is required (-o)")
			}
			h, destroy, err := openHandle(cfg, &mf)
			if err != nil {
				return err
			}
			defer destroy()
			if prompt != "" {
				if _, st := boundary.Embeddings(h, prompt, 0, mf.threads); st != boundary.StatusOK {
					return handleErr(h, "evaluate prompt")
				}
			}
			if st := boundary.SaveState(h, out, mode); st != boundary.StatusOK {
				return handleErr(h, "save state")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d bytes to %s\n", boundary.StateSize(h), out)
			return nil
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVarP(&out, "output", "o", "", "State file to write")
	cmd.Flags().StringVar(&mode, "mode", "wb", "fopen(3) mode: w, wb, wx, a, ab, w+...")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt to evaluate before saving")
	return cmd
}

func stateLoadCmd(cfg *Config) *cobra.Command {
	var (
		mf     modelFlags
		in     string
		mode   string
		prompt string
		format string
	)
	cmd := &cobra.Command{
		Use:     "load",
		Short:   "Restore the context state from a file and optionally embed a prompt on top of it",
		Example: "  llamabind state load -m model.gguf -i session.bin -p \"follow-up\"",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if in == "" {
				return errors.New("an input file is required (-i)")
			}
			h, destroy, err := openHandle(cfg, &mf)
			if err != nil {
				return err
			}
			defer destroy()
			if st := boundary.LoadState(h, in, mode); st != boundary.StatusOK {
				return handleErr(h, "load state")
			}
			if prompt == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "loaded %d bytes from %s\n", boundary.StateSize(h), in)
				return nil
			}
			vec, st := boundary.Embeddings(h, prompt, 0, mf.threads)
			if st != boundary.StatusOK {
				return handleErr(h, "embeddings")
			}
			return writeEmbedding(cmd.OutOrStdout(), format, mf.model, vec)
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVarP(&in, "input", "i", "", "State file to read")
	cmd.Flags().StringVar(&mode, "mode", "rb", "fopen(3) mode: r, rb, r+...")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt to embed after restoring")
	cmd.Flags().StringVar(&format, "format", "text", "Output format for the embedding: text|json")
	return cmd
}
