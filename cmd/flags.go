package cmd

import (
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/spf13/cobra"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
// This is appropriate for flags defined in init() - errors indicate programming bugs.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt gets an int flag value or panics if the flag doesn't exist.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// dayFlag parses a YYYY-MM-DD flag, defaulting to today when it is empty.
func dayFlag(cmd *cobra.Command, name string) (database.Day, error) {
	raw := mustGetString(cmd, name)
	if raw == "" {
		return database.DayOf(time.Now()), nil
	}
	day, err := database.ParseDay(raw)
	if err != nil {
		return "", fmt.Errorf("invalid --%s: %w", name, err)
	}
	return day, nil
}
