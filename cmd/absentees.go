package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var absenteesCmd = &cobra.Command{
	Use:   "absentees",
	Short: "Mark enrolled people without a record for a day as absent",
	Long: `Create an absent record for every enrolled person (one with a registered
face) who has no attendance record for the day. People without a face are skipped. Existing records are never changed, so running it twice
marks nobody the second time. Sessions do this automatically when they end.`,
	Args: cobra.NoArgs,
	RunE: runAbsentees,
}

func init() {
	rootCmd.AddCommand(absenteesCmd)

	absenteesCmd.Flags().String("day", "", "Day to finalize as YYYY-MM-DD (default today)")
}

func runAbsentees(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	day, err := dayFlag(cmd, "day")
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	marked, err := a.sweeper().FinalizeDay(ctx, day, time.Now())
	if err != nil {
		return fmt.Errorf("failed to finalize %s: %w", day, err)
	}
	fmt.Printf("Marked %d absent for %s\n", marked, day)
	return nil
}
