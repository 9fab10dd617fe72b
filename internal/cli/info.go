package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"llamabind/internal/boundary"
)

type modelInfo struct {
	Model         string `json:"model"`
	Engine        string `json:"engine"`
	EmbeddingSize int    `json:"embedding_size"`
	StateSize     int    `json:"state_size"`
}

func infoCmd(cfg *Config) *cobra.Command {
	var (
		mf     modelFlags
		format string
	)
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print the embedding dimension and state size of a model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, destroy, err := openHandle(cfg, &mf)
			if err != nil {
				return err
			}
			defer destroy()
			info := modelInfo{Model: mf.model, Engine: engineName(cfg)}
			if info.EmbeddingSize = boundary.EmbeddingSize(h); info.EmbeddingSize < 0 {
				return handleErr(h, "embedding size")
			}
			if info.StateSize = boundary.StateSize(h); info.StateSize < 0 {
				return handleErr(h, "state size")
			}
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				return json.NewEncoder(out).Encode(info)
			case "text":
				fmt.Fprintf(out, "model:          %s\n", info.Model)
				fmt.Fprintf(out, "engine:         %s\n", info.Engine)
				fmt.Fprintf(out, "embedding_size: %d\n", info.EmbeddingSize)
				fmt.Fprintf(out, "state_size:     %d\n", info.StateSize)
				return nil
			default:
				return fmt.Errorf("unknown --format %q (want text or json)", format)
			}
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|json")
	return cmd
}
