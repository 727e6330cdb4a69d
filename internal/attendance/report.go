package attendance

import (
	"context"
	"fmt"
	"sort"

	"github.com/facette/natsort"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Summarize aggregates one day of records. Present counts both present and late check-ins.
func Summarize(day database.Day, totalIdentities int, records []database.AttendanceRecord) database.DaySummary {
	s := database.DaySummary{Day: day, TotalIdentities: totalIdentities, Records: len(records)}
	for _, rec := range records {
		switch rec.Status {
		case database.StatusPresent:
			s.Present++
		case database.StatusLate:
			s.Present++
			s.Late++
		case database.StatusAbsent:
			s.Absent++
		}
		if rec.CheckedOut() {
			s.CheckedOut++
		}
	}
	s.NotRecorded = max(totalIdentities-len(records), 0)
	return s
}

// BuildIdentityReport aggregates records per identity. Every identity is listed,
// ordered naturally by code, including those without records.
func BuildIdentityReport(identities []database.Identity, records []database.AttendanceRecord) []database.IdentityAttendance {
	type sums struct {
		distance, detection   float64
		distanceN, detectionN int
	}

	rows := make(map[int64]*database.IdentityAttendance, len(identities))
	acc := make(map[int64]*sums, len(identities))
	for _, identity := range identities {
		rows[identity.ID] = &database.IdentityAttendance{IdentityID: identity.ID, Name: identity.Name, Code: identity.Code}
		acc[identity.ID] = &sums{}
	}

	for _, rec := range records {
		row, ok := rows[rec.IdentityID]
		if !ok {
			continue
		}
		row.DaysRecorded++
		if rec.Status == database.StatusPresent || rec.Status == database.StatusLate {
			row.DaysAttended++
		}
		if rec.Status == database.StatusLate {
			row.DaysLate++
		}
		a := acc[rec.IdentityID]
		if rec.MatchDistance != nil {
			a.distance += *rec.MatchDistance
			a.distanceN++
		}
		if rec.DetectionScore != nil {
			a.detection += *rec.DetectionScore
			a.detectionN++
		}
	}

	report := make([]database.IdentityAttendance, 0, len(rows))
	for id, row := range rows {
		if row.DaysRecorded > 0 {
			row.AttendancePercent = float64(row.DaysAttended) / float64(row.DaysRecorded) * 100
		}
		if a := acc[id]; a.distanceN > 0 {
			row.AvgMatchDistance = a.distance / float64(a.distanceN)
		}
		if a := acc[id]; a.detectionN > 0 {
			row.AvgDetectionScore = a.detection / float64(a.detectionN)
		}
		report = append(report, *row)
	}
	sort.Slice(report, func(i, j int) bool { return natsort.Compare(report[i].Code, report[j].Code) })
	return report
}

// Reporter reads attendance for summaries after checking the store's schema.
type Reporter struct {
	identities database.IdentityReader
	records    database.AttendanceReader
}

// NewReporter creates a reporter.
func NewReporter(identities database.IdentityReader, records database.AttendanceReader) *Reporter {
	return &Reporter{identities: identities, records: records}
}

func (r *Reporter) validate(ctx context.Context) error {
	if v, ok := r.records.(database.SchemaValidator); ok {
		if err := v.ValidateSchema(ctx); err != nil {
			return fmt.Errorf("validate attendance schema: %w", err)
		}
	}
	return nil
}

// DaySummary summarizes one day.
func (r *Reporter) DaySummary(ctx context.Context, day database.Day) (*database.DaySummary, error) {
	if err := r.validate(ctx); err != nil {
		return nil, err
	}
	total, err := r.identities.CountIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("count identities: %w", err)
	}
	records, err := r.records.ListRecordsBetween(ctx, day, day)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	summary := Summarize(day, total, records)
	return &summary, nil
}

// IdentityReport aggregates attendance per identity over [from, to].
func (r *Reporter) IdentityReport(ctx context.Context, from, to database.Day) ([]database.IdentityAttendance, error) {
	if from > to {
		return nil, fmt.Errorf("invalid range: %s is after %s", from, to)
	}
	if err := r.validate(ctx); err != nil {
		return nil, err
	}
	identities, err := r.identities.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	records, err := r.records.ListRecordsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return BuildIdentityReport(identities, records), nil
}
