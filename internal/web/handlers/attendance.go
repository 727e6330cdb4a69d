package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// AttendanceHandler handles attendance listing, summaries and the absentee sweep
type AttendanceHandler struct {
	svc *Services
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(svc *Services) *AttendanceHandler {
	return &AttendanceHandler{svc: svc}
}

// AttendanceEntryResponse is one record joined with its identity
type AttendanceEntryResponse struct {
	Name           string     `json:"name"`
	Code           string     `json:"code"`
	Day            string     `json:"day"`
	CheckIn        time.Time  `json:"check_in"`
	CheckOut       *time.Time `json:"check_out,omitempty"`
	Status         string     `json:"status"`
	Source         string     `json:"source"`
	SessionID      string     `json:"session_id,omitempty"`
	DetectionScore *float64   `json:"detection_score,omitempty"`
	MatchDistance  *float64   `json:"match_distance,omitempty"`
}

// NewAttendanceEntryResponse converts a joined record to its JSON form
func NewAttendanceEntryResponse(e database.AttendanceEntry) AttendanceEntryResponse {
	return AttendanceEntryResponse{
		Name:           e.Name,
		Code:           e.Code,
		Day:            e.Day.String(),
		CheckIn:        e.CheckIn,
		CheckOut:       e.CheckOut,
		Status:         string(e.Status),
		Source:         e.Source,
		SessionID:      e.SessionID,
		DetectionScore: e.DetectionScore,
		MatchDistance:  e.MatchDistance,
	}
}

// List returns the day's records, newest check-in first (?day=YYYY-MM-DD, default today)
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	day, err := h.svc.dayParam(r, "day")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.svc.Records.ListRecordsByDay(r.Context(), day)
	if err != nil {
		log.Printf("web: list attendance for %s: %v", day, err)
		respondError(w, http.StatusInternalServerError, "failed to list attendance")
		return
	}

	result := make([]AttendanceEntryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, NewAttendanceEntryResponse(e))
	}
	respondJSON(w, http.StatusOK, result)
}

// Summary returns the day's aggregate counts
func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	day, err := h.svc.dayParam(r, "day")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.svc.Reporter.DaySummary(r.Context(), day)
	if errors.Is(err, database.ErrSchemaMismatch) {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err != nil {
		log.Printf("web: summary for %s: %v", day, err)
		respondError(w, http.StatusInternalServerError, "failed to build summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// AbsenteesResponse reports the outcome of a manual sweep
type AbsenteesResponse struct {
	Day    string `json:"day"`
	Marked int    `json:"marked"`
}

// FinalizeAbsentees marks every enrolled identity without a record on the day as absent
func (h *AttendanceHandler) FinalizeAbsentees(w http.ResponseWriter, r *http.Request) {
	day, err := h.svc.dayParam(r, "day")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	marked, err := h.svc.Sweeper.FinalizeDay(r.Context(), day, h.svc.now())
	if err != nil {
		log.Printf("web: finalize absentees for %s: %v", day, err)
		respondError(w, http.StatusInternalServerError, "failed to finalize absentees")
		return
	}
	log.Printf("web: marked %d absent for %s", marked, day)
	respondJSON(w, http.StatusOK, AbsenteesResponse{Day: day.String(), Marked: marked})
}
