package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/capture/opencv"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run an attendance session on the camera",
	Long: `Recognize faces on the camera feed and record attendance for today.

The first recognition of a person checks them in (present, or late after
LATE_CUTOFF); the next one checks them out. Press 'q' in the preview window or
Ctrl+C to end the session. Every enrolled person without a record for the day is
then marked absent, also when the session is interrupted. A session running past
midnight records check-ins under the new day and finalizes every day it covered.`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(sessionCmd)

	sessionCmd.Flags().String("device", "", "Camera device id or stream URL (overrides CAMERA_DEVICE)")
	sessionCmd.Flags().Bool("headless", false, "Run without the preview window")
	sessionCmd.Flags().Int("frame-skip", 0, "Recognize every Nth frame (overrides FRAME_SKIP)")
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	device := mustGetString(cmd, "device")
	if device == "" {
		device = a.cfg.Camera.Device
	}
	frameSkip := a.cfg.Policy.FrameSkip
	if n := mustGetInt(cmd, "frame-skip"); n > 0 {
		frameSkip = n
	}

	analyzer, err := a.newAnalyzer()
	if err != nil {
		return err
	}
	if err := checkAnalyzer(ctx, analyzer); err != nil {
		return err
	}

	session := &capture.Session{
		OpenSource: func(ctx context.Context) (capture.FrameSource, error) {
			cam, err := opencv.OpenCamera(device)
			if err != nil {
				return nil, err
			}
			return cam, nil
		},
		Analyzer:  analyzer,
		Store:     a.store(analyzer.ModelTag()),
		Matcher:   a.matcher,
		Machine:   attendance.NewStateMachine(a.records, a.late, a.locks),
		Sweeper:   a.sweeper(),
		Recent:    attendance.NewRecentCache(a.cfg.Policy.RecognitionCooldown),
		FrameSkip: frameSkip,
	}
	if !mustGetBool(cmd, "headless") {
		session.OpenDisplay = func() (capture.Display, error) {
			win, err := opencv.OpenWindow("Attendance")
			if err != nil {
				return nil, err
			}
			return win, nil
		}
	}

	fmt.Printf("Starting attendance session on camera %s (late after %s)\n", device, a.cfg.Policy.LateCutoff)
	fmt.Println("Press 'q' in the window or Ctrl+C to stop")

	result, err := session.Run(ctx)
	if errors.Is(err, facematch.ErrStoreEmpty) {
		return fmt.Errorf("%w (enroll faces with: face register <code>)", err)
	}
	if result != nil {
		fmt.Printf("\nSession %s complete:\n", result.SessionID)
		fmt.Printf("  Day:          %s\n", result.Day)
		if len(result.Days) > 1 {
			fmt.Printf("  Finalized:    %s\n", joinDays(result.Days))
		}
		fmt.Printf("  Frames:       %d (%d analyzed)\n", result.Frames, result.Processed)
		fmt.Printf("  Recognitions: %d\n", result.Recognized)
		fmt.Printf("  Marked absent: %d\n", result.AbsentCount)
	}
	if err != nil {
		return fmt.Errorf("session failed: %w", err)
	}
	return nil
}

func joinDays(days []database.Day) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}
