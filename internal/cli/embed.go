package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"llamabind/internal/boundary"
	"llamabind/pkg/types"
)

func embedCmd(cfg *Config) *cobra.Command {
	var (
		mf     modelFlags
		prompt string
		dims   int
		format string
	)
	cmd := &cobra.Command{
		Use:     "embed",
		Short:   "Print the normalised embedding of a prompt",
		Example: "  llamabind embed -m model.gguf -p \"hello world\"\n  echo hello | llamabind embed -m model.gguf --format json",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown --format %q (want text or json)", format)
			}
			text, err := promptOrStdin(cmd, prompt)
			if err != nil {
				return err
			}
			h, destroy, err := openHandle(cfg, &mf)
			if err != nil {
				return err
			}
			defer destroy()
			vec, st := boundary.Embeddings(h, text, dims, mf.threads)
			if st != boundary.StatusOK {
				return handleErr(h, "embeddings")
			}
			return writeEmbedding(cmd.OutOrStdout(), format, mf.model, vec)
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Text to embed (read from stdin when empty)")
	cmd.Flags().IntVar(&dims, "dims", 0, "Output dimensions (0 = model size; smaller truncates, larger pads)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|json")
	return cmd
}

// promptOrStdin returns prompt, or the whole of stdin without its trailing
// newline when prompt is empty.
func promptOrStdin(cmd *cobra.Command, prompt string) (string, error) {
	if prompt != "" {
		return prompt, nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimRight(string(b), "\r\n")
	if text == "" {
		return "", errors.New("a prompt is required (-p or stdin)")
	}
	return text, nil
}

func writeEmbedding(w io.Writer, format, model string, vec []float32) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(types.EmbeddingsResponse{Model: model, Embedding: vec, Dimensions: len(vec)})
	}
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	_, err := fmt.Fprintln(w, strings.Join(parts, " "))
	return err
}
