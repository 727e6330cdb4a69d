package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/facette/natsort"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show attendance reports",
}

var reportDayCmd = &cobra.Command{
	Use:   "day",
	Short: "List a day's attendance records with a summary",
	Args:  cobra.NoArgs,
	RunE:  runReportDay,
}

var reportIdentitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Per-person attendance over a date range",
	Long: `Aggregate attendance per person over [--from, --to]: days recorded, days
attended (present or late), days late, attendance percentage and the average
match distance and detection score of face check-ins.`,
	Args: cobra.NoArgs,
	RunE: runReportIdentities,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportDayCmd)
	reportCmd.AddCommand(reportIdentitiesCmd)

	reportDayCmd.Flags().String("day", "", "Day as YYYY-MM-DD (default today)")
	reportDayCmd.Flags().Bool("json", false, "Output as JSON")

	reportIdentitiesCmd.Flags().String("from", "", "First day as YYYY-MM-DD (default first day of this month)")
	reportIdentitiesCmd.Flags().String("to", "", "Last day as YYYY-MM-DD (default today)")
	reportIdentitiesCmd.Flags().Bool("json", false, "Output as JSON")
}

// dayReport is the JSON output of `report day`.
type dayReport struct {
	Summary *database.DaySummary               `json:"summary"`
	Entries []handlers.AttendanceEntryResponse `json:"entries"`
}

func runReportDay(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")
	day, err := dayFlag(cmd, "day")
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.reporter().DaySummary(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to summarize %s: %w", day, err)
	}
	entries, err := a.records.ListRecordsByDay(ctx, day)
	if err != nil {
		return fmt.Errorf("failed to list records for %s: %w", day, err)
	}

	if jsonOutput {
		report := dayReport{Summary: summary, Entries: make([]handlers.AttendanceEntryResponse, 0, len(entries))}
		for _, e := range entries {
			report.Entries = append(report.Entries, handlers.NewAttendanceEntryResponse(e))
		}
		return outputJSON(report)
	}

	fmt.Printf("Attendance for %s\n\n", day)
	if len(entries) > 0 {
		fmt.Printf("%-12s %-28s %-8s %-9s %-9s %s\n", "CODE", "NAME", "STATUS", "IN", "OUT", "DISTANCE")
		for _, e := range entries {
			fmt.Printf("%-12s %-28s %-8s %-9s %-9s %s\n",
				e.Code, e.Name, e.Status, clock(&e.CheckIn), clock(e.CheckOut), optionalFloat(e.MatchDistance))
		}
		fmt.Println()
	}
	printSummary(summary)
	return nil
}

func printSummary(s *database.DaySummary) {
	fmt.Printf("Summary:\n")
	fmt.Printf("  Registered:   %d\n", s.TotalIdentities)
	fmt.Printf("  Present:      %d (late %d)\n", s.Present, s.Late)
	fmt.Printf("  Absent:       %d\n", s.Absent)
	fmt.Printf("  Checked out:  %d\n", s.CheckedOut)
	if s.NotRecorded > 0 {
		fmt.Printf("  Not recorded: %d (run: absentees --day %s)\n", s.NotRecorded, s.Day)
	}
}

func runReportIdentities(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")

	to, err := dayFlag(cmd, "to")
	if err != nil {
		return err
	}
	from := database.DayOf(monthStart(time.Now()))
	if mustGetString(cmd, "from") != "" {
		if from, err = dayFlag(cmd, "from"); err != nil {
			return err
		}
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := a.reporter().IdentityReport(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to build report: %w", err)
	}
	sort.SliceStable(rows, func(i, j int) bool { return natsort.Compare(rows[i].Code, rows[j].Code) })

	if jsonOutput {
		return outputJSON(rows)
	}

	fmt.Printf("Attendance from %s to %s\n\n", from, to)
	fmt.Printf("%-12s %-28s %8s %8s %6s %7s %9s\n", "CODE", "NAME", "RECORDED", "ATTENDED", "LATE", "RATE", "DISTANCE")
	for _, r := range rows {
		fmt.Printf("%-12s %-28s %8d %8d %6d %6.1f%% %9.3f\n",
			r.Code, r.Name, r.DaysRecorded, r.DaysAttended, r.DaysLate, r.AttendancePercent, r.AvgMatchDistance)
	}
	return nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func clock(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("15:04:05")
}

func optionalFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *f)
}
