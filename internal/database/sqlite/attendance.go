package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttendanceRepository provides SQLite-backed attendance storage
type AttendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository creates a new SQLite attendance repository
func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

type entryRow struct {
	Record attendanceModel `gorm:"embedded"`
	Name   string
	Code   string
}

// GetRecord retrieves the record for (identity, day), returns nil if not found
func (r *AttendanceRepository) GetRecord(ctx context.Context, identityID int64, day database.Day) (*database.AttendanceRecord, error) {
	var m attendanceModel
	err := r.db.WithContext(ctx).
		Where("identity_id = ? AND day = ?", identityID, day.String()).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record for identity %d on %s: %w", identityID, day, err)
	}
	rec := m.toRecord()
	return &rec, nil
}

// ListRecordsByDay returns the day's records joined with identities, newest check-in first
func (r *AttendanceRepository) ListRecordsByDay(ctx context.Context, day database.Day) ([]database.AttendanceEntry, error) {
	var rows []entryRow
	err := r.db.WithContext(ctx).
		Table("attendance_records AS a").
		Select("a.*, i.name AS name, i.code AS code").
		Joins("JOIN identities AS i ON i.id = a.identity_id").
		Where("a.day = ?", day.String()).
		Order("a.check_in DESC, a.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list records for %s: %w", day, err)
	}

	entries := make([]database.AttendanceEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, database.AttendanceEntry{
			AttendanceRecord: rows[i].Record.toRecord(),
			Name:             rows[i].Name,
			Code:             rows[i].Code,
		})
	}
	return entries, nil
}

// ListRecordsBetween returns records for days in [from, to], ordered by day then identity
func (r *AttendanceRepository) ListRecordsBetween(ctx context.Context, from, to database.Day) ([]database.AttendanceRecord, error) {
	var models []attendanceModel
	err := r.db.WithContext(ctx).
		Where("day BETWEEN ? AND ?", from.String(), to.String()).
		Order("day ASC, identity_id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list records between %s and %s: %w", from, to, err)
	}

	records := make([]database.AttendanceRecord, 0, len(models))
	for i := range models {
		records = append(records, models[i].toRecord())
	}
	return records, nil
}

// RecordedIdentityIDs returns the distinct identities having any record on day
func (r *AttendanceRepository) RecordedIdentityIDs(ctx context.Context, day database.Day) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&attendanceModel{}).
		Where("day = ?", day.String()).
		Distinct().
		Order("identity_id ASC").
		Pluck("identity_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("query recorded identities: %w", err)
	}
	return ids, nil
}

// InsertRecordIfAbsent inserts rec unless a record exists for (identity, day)
func (r *AttendanceRepository) InsertRecordIfAbsent(ctx context.Context, rec *database.AttendanceRecord) (bool, error) {
	m := fromRecord(rec)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "identity_id"}, {Name: "day"}},
			DoNothing: true,
		}).
		Create(&m)
	if result.Error != nil {
		return false, fmt.Errorf("insert record for identity %d: %w", rec.IdentityID, result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	rec.ID = m.ID
	return true, nil
}

// SetCheckOutIfEmpty sets check_out only while it is still NULL
func (r *AttendanceRepository) SetCheckOutIfEmpty(ctx context.Context, recordID int64, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&attendanceModel{}).
		Where("id = ? AND check_out IS NULL", recordID).
		Update("check_out", at)
	if result.Error != nil {
		return false, fmt.Errorf("set check-out on record %d: %w", recordID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ValidateSchema checks that the attendance table has every column reports read
func (r *AttendanceRepository) ValidateSchema(ctx context.Context) error {
	migrator := r.db.WithContext(ctx).Migrator()
	if !migrator.HasTable(&attendanceModel{}) {
		return fmt.Errorf("%w: attendance table is missing", database.ErrSchemaMismatch)
	}
	found := make(map[string]bool)
	for _, column := range database.ReportColumns {
		found[column] = migrator.HasColumn(&attendanceModel{}, column)
	}
	return database.MissingColumnsError(found)
}
