package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/lib/pq"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

var recordColumns = []string{
	"a.id", "a.identity_id", "to_char(a.day, 'YYYY-MM-DD')", "a.check_in", "a.check_out",
	"a.status", "a.source", "a.session_id", "a.detection_score", "a.match_distance",
}

func recordDest(rec *database.AttendanceRecord, day *string, checkOut *sql.NullTime, detection, distance *sql.NullFloat64) []any {
	return []any{
		&rec.ID, &rec.IdentityID, day, &rec.CheckIn, checkOut,
		&rec.Status, &rec.Source, &rec.SessionID, detection, distance,
	}
}

func finishRecord(rec *database.AttendanceRecord, day string, checkOut sql.NullTime, detection, distance sql.NullFloat64) {
	rec.Day = database.Day(day)
	if checkOut.Valid {
		rec.CheckOut = &checkOut.Time
	}
	if detection.Valid {
		rec.DetectionScore = &detection.Float64
	}
	if distance.Valid {
		rec.MatchDistance = &distance.Float64
	}
}

func scanRecord(scanner interface{ Scan(dest ...any) error }, extra ...any) (database.AttendanceRecord, error) {
	var rec database.AttendanceRecord
	var day string
	var checkOut sql.NullTime
	var detection, distance sql.NullFloat64

	dest := append(recordDest(&rec, &day, &checkOut, &detection, &distance), extra...)
	if err := scanner.Scan(dest...); err != nil {
		return rec, err
	}
	finishRecord(&rec, day, checkOut, detection, distance)
	return rec, nil
}

// GetRecord retrieves the record for (identity, day), returns nil if not found
func (r *AttendanceRepository) GetRecord(ctx context.Context, identityID int64, day database.Day) (*database.AttendanceRecord, error) {
	query, args, err := psql.Select(recordColumns...).
		From("attendance_records a").
		Where(sq.Eq{"a.identity_id": identityID}).
		Where("a.day = ?::date", day.String()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build record query: %w", err)
	}

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record for identity %d on %s: %w", identityID, day, err)
	}
	return &rec, nil
}

// ListRecordsByDay returns the day's records joined with identities, newest check-in first
func (r *AttendanceRepository) ListRecordsByDay(ctx context.Context, day database.Day) ([]database.AttendanceEntry, error) {
	query, args, err := psql.Select(append(recordColumns, "i.name", "i.code")...).
		From("attendance_records a").
		Join("identities i ON i.id = a.identity_id").
		Where("a.day = ?::date", day.String()).
		OrderBy("a.check_in DESC", "a.id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build day listing: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records for %s: %w", day, err)
	}
	defer rows.Close()

	var entries []database.AttendanceEntry
	for rows.Next() {
		var entry database.AttendanceEntry
		rec, err := scanRecord(rows, &entry.Name, &entry.Code)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		entry.AttendanceRecord = rec
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return entries, nil
}

// ListRecordsBetween returns records for days in [from, to], ordered by day then identity
func (r *AttendanceRepository) ListRecordsBetween(ctx context.Context, from, to database.Day) ([]database.AttendanceRecord, error) {
	query, args, err := psql.Select(recordColumns...).
		From("attendance_records a").
		Where("a.day BETWEEN ?::date AND ?::date", from.String(), to.String()).
		OrderBy("a.day ASC", "a.identity_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build range query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records between %s and %s: %w", from, to, err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// RecordedIdentityIDs returns the distinct identities having any record on day
func (r *AttendanceRepository) RecordedIdentityIDs(ctx context.Context, day database.Day) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT DISTINCT identity_id FROM attendance_records WHERE day = $1::date ORDER BY identity_id",
		day.String())
	if err != nil {
		return nil, fmt.Errorf("query recorded identities: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan identity id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity ids: %w", err)
	}
	return ids, nil
}

// InsertRecordIfAbsent inserts rec unless a record exists for (identity, day)
func (r *AttendanceRepository) InsertRecordIfAbsent(ctx context.Context, rec *database.AttendanceRecord) (bool, error) {
	query, args, err := psql.Insert("attendance_records").
		Columns("identity_id", "day", "check_in", "status", "source", "session_id", "detection_score", "match_distance").
		Values(rec.IdentityID, sq.Expr("?::date", rec.Day.String()), rec.CheckIn, string(rec.Status),
			rec.Source, rec.SessionID, rec.DetectionScore, rec.MatchDistance).
		Suffix("ON CONFLICT (identity_id, day) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert record: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert record for identity %d: %w", rec.IdentityID, err)
	}
	rec.ID = id
	return true, nil
}

// SetCheckOutIfEmpty sets check_out only while it is still NULL
func (r *AttendanceRepository) SetCheckOutIfEmpty(ctx context.Context, recordID int64, at time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx,
		"UPDATE attendance_records SET check_out = $1 WHERE id = $2 AND check_out IS NULL",
		at, recordID)
	if err != nil {
		return false, fmt.Errorf("set check-out on record %d: %w", recordID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ValidateSchema checks that the attendance table has every column reports read
func (r *AttendanceRepository) ValidateSchema(ctx context.Context) error {
	rows, err := r.pool.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_name = 'attendance_records' AND column_name = ANY($1)
	`, pq.Array(database.ReportColumns))
	if err != nil {
		return fmt.Errorf("inspect attendance schema: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan column name: %w", err)
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate columns: %w", err)
	}
	return database.MissingColumnsError(found)
}
