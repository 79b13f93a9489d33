package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quizcat-service/internal/domain"
	"quizcat-service/internal/questionbank"
)

type classificationFlags struct {
	subject, topic, grade, difficulty string
}

func (f *classificationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.subject, "subject", "", "subject assigned to every question")
	cmd.Flags().StringVar(&f.topic, "topic", "", "topic assigned to every question")
	cmd.Flags().StringVar(&f.grade, "grade", "", "grade assigned to every question (e.g. 4 or ป.4)")
	cmd.Flags().StringVar(&f.difficulty, "difficulty", "", "easy, medium or hard")
}

func (f *classificationFlags) defaults() (questionbank.Defaults, error) {
	grade, err := domain.ParseGrade(f.grade)
	if err != nil {
		return questionbank.Defaults{}, err
	}
	difficulty, err := domain.ParseDifficulty(f.difficulty)
	if err != nil {
		return questionbank.Defaults{}, err
	}
	return questionbank.Defaults{Subject: f.subject, Topic: f.topic, Grade: grade, Difficulty: difficulty}, nil
}

// NewImportCmd loads questions from a CSV file into the configured store.
func NewImportCmd(configPath *string) *cobra.Command {
	var flags classificationFlags
	cmd := &cobra.Command{
		Use:   "import-csv <file>",
		Short: "Import questions from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defaults, err := flags.defaults()
			if err != nil {
				return err
			}
			cfg, log, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			svc, err := buildServices(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer svc.Close()

			report, err := svc.questions.ImportCSV(cmd.Context(), f, defaults)
			if err != nil {
				return err
			}
			for _, rej := range report.Rejected {
				fmt.Fprintf(cmd.ErrOrStderr(), "row %d: %v\n", rej.Index, rej.Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d question(s), rejected %d\n", report.Imported, len(report.Rejected))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
