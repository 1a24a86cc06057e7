package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"englishapp/internal/models"
	"englishapp/internal/observability"
	"englishapp/internal/services"
	contextutils "englishapp/internal/utils"

	"github.com/spf13/cobra"
)

// QuizBank moves questions between the database and spreadsheets
type QuizBank interface {
	Import(ctx context.Context, r io.Reader, sheet string) (*services.QuizImportResult, error)
	Export(ctx context.Context, w io.Writer, topic, level string) (int, error)
}

// QuizStats counts stored questions
type QuizStats interface {
	Stats(ctx context.Context) ([]models.QuizStat, error)
}

// QuizCommands returns the question bank commands
func QuizCommands(stats QuizStats, bank QuizBank, logger *observability.Logger) *cobra.Command {
	quizCmd := &cobra.Command{
		Use:   "quiz",
		Short: "Question bank commands",
		Long: `Question bank commands for the English learning backend.

Available commands:
  stats    - Count stored questions per topic and level
  import   - Import questions from an xlsx spreadsheet
  export   - Export questions to an xlsx spreadsheet`,
	}

	quizCmd.AddCommand(quizStatsCmd(stats, logger))
	quizCmd.AddCommand(quizImportCmd(bank, logger))
	quizCmd.AddCommand(quizExportCmd(bank, logger))

	return quizCmd
}

func quizStatsCmd(stats QuizStats, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count stored questions per topic and level",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rows, err := stats.Stats(ctx)
			if err != nil {
				logger.Error(ctx, "Failed to read quiz stats", err)
				return err
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No questions stored")
				return nil
			}

			total := 0
			fmt.Fprintf(out, "%-30s %-15s %8s\n", "Topic", "Level", "Count")
			for _, row := range rows {
				fmt.Fprintf(out, "%-30s %-15s %8d\n", row.Topic, row.Level, row.Count)
				total += row.Count
			}
			fmt.Fprintf(out, "%-30s %-15s %8d\n", "Total", "", total)
			return nil
		},
	}
}

func quizImportCmd(bank QuizBank, logger *observability.Logger) *cobra.Command {
	var sheet string

	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Import questions from an xlsx spreadsheet",
		Long: fmt.Sprintf(`Import questions from an xlsx spreadsheet. The first row is a header; columns are
%v. Questions already stored with the same text are skipped.`, services.QuizBankHeader),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			result, err := bank.Import(ctx, f, sheet)
			if err != nil {
				logger.Error(ctx, "Quiz import failed", err, map[string]interface{}{"file": args[0]})
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rows: %d, inserted: %d, duplicates: %d, rejected: %d\n",
				result.Rows, result.Inserted, result.Duplicates, len(result.Errors))
			for _, msg := range result.Errors {
				fmt.Fprintf(out, "  %s\n", msg)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (default: first sheet)")
	return cmd
}

func quizExportCmd(bank QuizBank, logger *observability.Logger) *cobra.Command {
	var topic, level string

	cmd := &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Export questions to an xlsx spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Create(filepath.Clean(args[0]))
			if err != nil {
				return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to create %s: %w", args[0], err)
			}

			count, err := bank.Export(ctx, f, topic, level)
			closeErr := f.Close()
			if err != nil {
				logger.Error(ctx, "Quiz export failed", err, map[string]interface{}{"file": args[0]})
				return err
			}
			if closeErr != nil {
				return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to write %s: %w", args[0], closeErr)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d questions to %s\n", count, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Only export this topic")
	cmd.Flags().StringVar(&level, "level", "", "Only export this level")
	return cmd
}
