package commands

import (
	"fmt"

	"github.com/benvon/sage-coach/internal/database"
	"github.com/benvon/sage-coach/internal/services/sessionstate"
	"github.com/spf13/cobra"
)

// NewStateCmd creates the state command
func NewStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <user-id>",
		Short: "Show the session state for a user",
		Long:  "Run the session state detector for a user and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}

			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			detector := sessionstate.NewDetector(
				database.NewUserRepository(db),
				database.NewSessionRepository(db),
				database.NewMessageRepository(db),
			)

			result, err := detector.DetectState(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("failed to detect session state: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}
