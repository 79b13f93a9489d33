package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"quizcat-service/internal/questionbank"
)

// NewGenerateCmd asks the AI generator for questions, prints them, and optionally stores the valid ones.
func NewGenerateCmd(configPath *string) *cobra.Command {
	var (
		flags  classificationFlags
		prompt string
		count  int
		save   bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate questions with the configured OpenAI-compatible model",
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return fmt.Errorf("--prompt is required")
			}
			defaults, err := flags.defaults()
			if err != nil {
				return err
			}
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			svc, err := buildServices(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			batch, err := svc.questions.Generate(cmd.Context(), questionbank.GenerateRequest{
				Prompt:   prompt,
				Count:    count,
				Defaults: defaults,
			})
			if err != nil {
				return err
			}
			if !save {
				return printJSON(cmd, batch)
			}
			report, err := svc.questions.SaveGenerated(cmd.Context(), batch.Questions)
			if err != nil {
				return err
			}
			report.Rejected = append(batch.Rejected, report.Rejected...)
			return printJSON(cmd, report)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&prompt, "prompt", "", "what the questions should be about")
	cmd.Flags().IntVar(&count, "count", 5, "number of questions to request")
	cmd.Flags().BoolVar(&save, "save", false, "store the valid questions instead of printing a preview")
	return cmd
}
