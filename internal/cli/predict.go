package cli

import (
	"github.com/spf13/cobra"

	"llamabind/internal/boundary"
)

func predictCmd(cfg *Config) *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Text generation (disabled in this build)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, st := boundary.Predict(0, prompt); st != boundary.StatusOK {
				return handleErr(0, "predict")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Prompt (ignored)")
	return cmd
}
