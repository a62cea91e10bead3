package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/sage-coach/internal/database"
	"github.com/benvon/sage-coach/internal/documents"
	"github.com/benvon/sage-coach/internal/logger"
	"github.com/benvon/sage-coach/internal/models"
	"github.com/benvon/sage-coach/internal/services/ai"
	"github.com/benvon/sage-coach/internal/services/captures"
	"github.com/spf13/cobra"
)

// NewCaptureCmd creates the capture command with the add subcommand
func NewCaptureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Manage captures",
	}
	cmd.AddCommand(newCaptureAddCmd())
	return cmd
}

func newCaptureAddCmd() *cobra.Command {
	var (
		userArg    string
		inputMode  string
		noClassify bool
	)

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Record a capture for a user",
		Long:  "Write a capture document and its database row, then classify it before exiting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userArg == "" {
				return fmt.Errorf("--user is required")
			}
			userID, err := parseUserID(userArg)
			if err != nil {
				return err
			}

			cfg, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			l, err := logger.NewDevelopmentLogger(false)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = l.Sync() }()

			docStore, err := documents.NewFileStore(cfg.DocumentRoot)
			if err != nil {
				return fmt.Errorf("failed to open document store: %w", err)
			}

			var classifier ai.Classifier = ai.Unavailable{Err: errors.New("classification skipped")}
			if !noClassify {
				classifier, err = ai.NewClassifier(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, l, false)
				if err != nil {
					return fmt.Errorf("failed to create classifier (use --no-classify to skip): %w", err)
				}
			}

			captureRepo := database.NewCaptureRepository(db)
			dispatcher := captures.NewInlineDispatcher(captures.NewRunner(classifier, docStore, captureRepo, l), l)
			service := captures.NewService(database.NewUserRepository(db), docStore, captureRepo, dispatcher, captures.WithLogger(l))

			submission, err := service.Submit(cmd.Context(), userID, strings.Join(args, " "), models.InputMode(inputMode))
			if err != nil {
				return fmt.Errorf("failed to submit capture: %w", err)
			}
			dispatcher.Wait()

			return printJSON(cmd.OutOrStdout(), submission)
		},
	}

	cmd.Flags().StringVar(&userArg, "user", "", "User ID (required)")
	cmd.Flags().StringVar(&inputMode, "input-mode", string(models.InputModeText), "Input mode (text or voice)")
	cmd.Flags().BoolVar(&noClassify, "no-classify", false, "Skip classification")
	return cmd
}
