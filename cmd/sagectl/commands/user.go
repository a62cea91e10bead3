package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/benvon/sage-coach/internal/database"
	"github.com/spf13/cobra"
)

// NewUserCmd creates the user command
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user profiles",
	}
	cmd.AddCommand(newUserOnboardCmd())
	cmd.AddCommand(newUserTimezoneCmd())
	return cmd
}

func newUserOnboardCmd() *cobra.Command {
	var checkinIn time.Duration

	cmd := &cobra.Command{
		Use:   "onboard <user-id>",
		Short: "Mark a user's onboarding as completed",
		Long:  "Mark onboarding completed without a life mapping session and optionally schedule the first check-in",
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

			users := database.NewUserRepository(db)
			ctx := cmd.Context()
			if err := users.CompleteOnboarding(ctx, userID); err != nil {
				return fmt.Errorf("failed to complete onboarding: %w", err)
			}
			if checkinIn > 0 {
				next := time.Now().UTC().Add(checkinIn)
				if err := users.SetNextCheckin(ctx, userID, &next); err != nil {
					return fmt.Errorf("failed to schedule check-in: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Next check-in scheduled for %s\n", next.Format(time.RFC3339))
			}

			fmt.Fprintln(cmd.OutOrStdout(), "User onboarded.")
			return nil
		},
	}

	cmd.Flags().DurationVar(&checkinIn, "checkin-in", 0, "Schedule the next check-in this far from now (e.g. 168h)")
	return cmd
}

func newUserTimezoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timezone <user-id> <iana-name>",
		Short: "Set a user's timezone",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			tz := strings.TrimSpace(args[1])
			if _, err := time.LoadLocation(tz); err != nil || tz == "" || tz == "Local" {
				return fmt.Errorf("invalid timezone %q", args[1])
			}

			_, db, closeDB, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := database.NewUserRepository(db).SetTimezone(cmd.Context(), userID, tz); err != nil {
				return fmt.Errorf("failed to set timezone: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Timezone updated.")
			return nil
		},
	}
}
