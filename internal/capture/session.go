package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/vision"
)

// DefaultFrameSkip runs recognition on every fifth frame.
const DefaultFrameSkip = 5

// Session is one attendance capture run against a single camera.
type Session struct {
	OpenSource  func(ctx context.Context) (FrameSource, error)
	OpenDisplay func() (Display, error) // nil runs headless

	Analyzer vision.Analyzer
	Store    *facematch.Store
	Matcher  *facematch.Matcher
	Machine  *attendance.StateMachine
	Sweeper  *attendance.Sweeper
	Recent   *attendance.RecentCache // optional hint cache

	FrameSkip int
	Now       func() time.Time
}

// Result summarizes a finished session.
type Result struct {
	SessionID   uuid.UUID
	Day         database.Day   // day the session started
	Days        []database.Day // every day finalized at the end, oldest first
	Frames      int
	Processed   int
	Recognized  int
	AbsentCount int
}

type headless struct{}

func (headless) Show(image.Image, []Overlay) (Key, error) { return KeyNone, nil }
func (headless) Close() error                             { return nil }

func (s *Session) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Run loads the enrolled faces, opens the camera and processes frames until the
// operator quits, ctx is cancelled or the stream ends. Absentees are then finalized
// for every day the session ran through, before the display and camera are released.
// Only an empty registry or an unavailable camera make Run fail before the loop.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	faces, err := s.Store.LoadForRecognition(ctx)
	if err != nil {
		return nil, err
	}

	src, err := s.OpenSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	defer closeLogged("frame source", src)

	var display Display = headless{}
	if s.OpenDisplay != nil {
		if display, err = s.OpenDisplay(); err != nil {
			return nil, fmt.Errorf("open display: %w", err)
		}
	}
	defer closeLogged("display", display)

	start := s.now()
	result := &Result{SessionID: uuid.New(), Day: database.DayOf(start)}
	log.Printf("capture: session %s started with %d enrolled faces", result.SessionID, len(faces))

	s.loop(ctx, src, display, faces, result)

	// The sweep must run even when the session was cancelled.
	sweepCtx := context.WithoutCancel(ctx)
	end := s.now()
	for _, d := range sessionDays(start, end) {
		day := database.DayOf(d)
		at := end
		if day != database.DayOf(end) {
			at = time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, d.Location())
		}
		absent, err := s.Sweeper.FinalizeDay(sweepCtx, day, at)
		result.AbsentCount += absent
		if err != nil {
			return result, fmt.Errorf("finalize absentees for %s: %w", day, err)
		}
		result.Days = append(result.Days, day)
	}
	log.Printf("capture: session %s finished, %d frames, %d recognitions, %d absent",
		result.SessionID, result.Frames, result.Recognized, result.AbsentCount)
	return result, nil
}

// sessionDays returns midnight of every calendar day from start to end, inclusive.
func sessionDays(start, end time.Time) []time.Time {
	loc := start.Location()
	end = end.In(loc)
	d := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	var days []time.Time
	for !d.After(last) {
		days = append(days, d)
		d = d.AddDate(0, 0, 1)
	}
	return days
}

func (s *Session) loop(ctx context.Context, src FrameSource, display Display, faces []database.EnrolledFace, result *Result) {
	skip := s.FrameSkip
	if skip < 1 {
		skip = DefaultFrameSkip
	}

	for ctx.Err() == nil {
		frame, err := src.Next(ctx)
		if err != nil {
			if !errors.Is(err, ErrEndOfStream) && ctx.Err() == nil {
				log.Printf("capture: frame read failed, stopping: %v", err)
			}
			return
		}
		result.Frames++

		var overlays []Overlay
		if result.Frames%skip == 0 {
			result.Processed++
			overlays = s.processFrame(ctx, frame, faces, result)
		}

		key, err := display.Show(frame, overlays)
		if err != nil {
			log.Printf("capture: display failed: %v", err)
		}
		if key == KeyQuit {
			return
		}
	}
}

// processFrame never fails: errors and panics are logged and the frame is dropped.
func (s *Session) processFrame(ctx context.Context, frame image.Image, faces []database.EnrolledFace, result *Result) (overlays []Overlay) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("capture: recovered while processing frame %d: %v\n%s", result.Frames, r, debug.Stack())
			overlays = nil
		}
	}()

	detected, err := s.Analyzer.Detect(ctx, frame)
	if err != nil {
		if !errors.Is(err, vision.ErrNoFaceDetected) {
			log.Printf("capture: detection failed: %v", err)
		}
		return nil
	}
	vision.AttachCrops(frame, detected, vision.CropMargin)

	for _, face := range detected {
		if o, ok := s.processFace(ctx, face, faces, result); ok {
			overlays = append(overlays, o)
		}
	}
	return overlays
}

func (s *Session) processFace(ctx context.Context, face vision.Face, faces []database.EnrolledFace, result *Result) (Overlay, bool) {
	embedding, err := vision.EmbedFace(ctx, s.Analyzer, face)
	if err != nil {
		if !errors.Is(err, vision.ErrNoFaceDetected) {
			log.Printf("capture: embedding failed: %v", err)
		}
		return Overlay{}, false
	}

	match := s.Matcher.Identify(embedding, faces)
	if !match.Accepted {
		return unknownOverlay(face.Box, match.Distance), true
	}

	now := s.now()
	identity := match.Face
	if s.Recent.Seen(identity.IdentityID, now) {
		return Overlay{Box: face.Box, Origin: labelOrigin(face.Box), Label: facematch.ASCIIName(identity.Name), Color: ColorCompleted}, true
	}

	ev := Evidence(result.SessionID.String(), face.Score, match.Distance)
	res, err := s.Machine.OnRecognition(ctx, identity.IdentityID, now, ev)
	if err != nil {
		log.Printf("capture: attendance update for %s failed: %v", identity.Code, err)
		return Overlay{}, false
	}
	s.Recent.Mark(identity.IdentityID, now)
	result.Recognized++

	switch res.Outcome {
	case attendance.OutcomeCheckedIn:
		log.Printf("capture: %s (%s) marked %s", identity.Name, identity.Code, res.Record.Status)
	case attendance.OutcomeCheckedOut:
		log.Printf("capture: %s (%s) marked out", identity.Name, identity.Code)
	}
	return outcomeOverlay(face.Box, identity.Name, res), true
}

// Evidence builds the quality data stored with a check-in.
func Evidence(sessionID string, detectionScore, matchDistance float64) attendance.Evidence {
	ev := attendance.Evidence{SessionID: sessionID, MatchDistance: &matchDistance}
	if detectionScore > 0 {
		ev.DetectionScore = &detectionScore
	}
	return ev
}

func closeLogged(what string, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		log.Printf("capture: closing %s: %v", what, err)
	}
}
