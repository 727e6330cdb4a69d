package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Path:     filepath.Join(t.TempDir(), "attendance.db"),
		LogLevel: "silent",
	}
	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { Close(db) })
	return db
}

func TestIdentityRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewIdentityRepository(openTestDB(t))

	alice, err := repo.CreateIdentity(ctx, "Alice", "R001")
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	if alice.ID == 0 {
		t.Fatal("expected identity ID to be assigned")
	}
	if _, err := repo.CreateIdentity(ctx, "Bob", "R002"); err != nil {
		t.Fatalf("create identity: %v", err)
	}

	t.Run("duplicate code", func(t *testing.T) {
		_, err := repo.CreateIdentity(ctx, "Someone", "R001")
		if !errors.Is(err, database.ErrIdentityExists) {
			t.Errorf("expected ErrIdentityExists, got %v", err)
		}
	})

	t.Run("missing code returns nil", func(t *testing.T) {
		got, err := repo.GetIdentityByCode(ctx, "R999")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("count", func(t *testing.T) {
		n, err := repo.CountIdentities(ctx)
		if err != nil || n != 2 {
			t.Errorf("expected 2 identities, got %d (%v)", n, err)
		}
	})

	t.Run("enroll", func(t *testing.T) {
		enrolled, err := repo.ListEnrolled(ctx)
		if err != nil {
			t.Fatalf("list enrolled: %v", err)
		}
		if len(enrolled) != 0 {
			t.Fatalf("expected nobody enrolled yet, got %d", len(enrolled))
		}

		blob, _ := database.EncodeEmbedding([]float32{0.1, 0.2, 0.3}, "VGG-Face+opencv")
		if err := repo.SetEmbedding(ctx, alice.ID, blob, "VGG-Face+opencv"); err != nil {
			t.Fatalf("set embedding: %v", err)
		}

		enrolled, err = repo.ListEnrolled(ctx)
		if err != nil {
			t.Fatalf("list enrolled: %v", err)
		}
		if len(enrolled) != 1 || enrolled[0].Code != "R001" {
			t.Fatalf("expected only R001 enrolled, got %+v", enrolled)
		}
		if enrolled[0].EmbeddingModel != "VGG-Face+opencv" || enrolled[0].EnrolledAt == nil {
			t.Errorf("expected model tag and enrolled_at, got %+v", enrolled[0])
		}
		if !enrolled[0].Enrolled() {
			t.Error("expected Enrolled() to be true")
		}
	})

	t.Run("list ordered by id", func(t *testing.T) {
		all, err := repo.ListIdentities(ctx)
		if err != nil {
			t.Fatalf("list identities: %v", err)
		}
		if len(all) != 2 || all[0].ID >= all[1].ID {
			t.Errorf("expected two identities ordered by ID, got %+v", all)
		}
	})
}

func TestAttendanceRepository(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	identities := NewIdentityRepository(db)
	repo := NewAttendanceRepository(db)

	alice, _ := identities.CreateIdentity(ctx, "Alice", "R001")
	bob, _ := identities.CreateIdentity(ctx, "Bob", "R002")

	day := database.Day("2024-03-04")
	at := time.Date(2024, 3, 4, 8, 50, 0, 0, time.UTC)
	dist := 0.21

	rec := &database.AttendanceRecord{
		IdentityID: alice.ID, Day: day, CheckIn: at,
		Status: database.StatusPresent, Source: database.SourceFace, SessionID: "s1", MatchDistance: &dist,
	}
	inserted, err := repo.InsertRecordIfAbsent(ctx, rec)
	if err != nil || !inserted {
		t.Fatalf("expected insert, got %v (%v)", inserted, err)
	}

	t.Run("second insert for same day is rejected", func(t *testing.T) {
		dup := &database.AttendanceRecord{IdentityID: alice.ID, Day: day, CheckIn: at.Add(time.Hour), Status: database.StatusLate, Source: database.SourceFace}
		inserted, err := repo.InsertRecordIfAbsent(ctx, dup)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if inserted {
			t.Error("expected insert to be rejected")
		}
		got, _ := repo.GetRecord(ctx, alice.ID, day)
		if got.Status != database.StatusPresent {
			t.Errorf("expected original status to be kept, got %s", got.Status)
		}
	})

	t.Run("same identity on another day is allowed", func(t *testing.T) {
		next := &database.AttendanceRecord{IdentityID: alice.ID, Day: "2024-03-05", CheckIn: at.Add(24 * time.Hour), Status: database.StatusPresent, Source: database.SourceFace}
		inserted, err := repo.InsertRecordIfAbsent(ctx, next)
		if err != nil || !inserted {
			t.Errorf("expected insert on another day, got %v (%v)", inserted, err)
		}
	})

	t.Run("check-out only once", func(t *testing.T) {
		ok, err := repo.SetCheckOutIfEmpty(ctx, rec.ID, at.Add(8*time.Hour))
		if err != nil || !ok {
			t.Fatalf("expected check-out, got %v (%v)", ok, err)
		}
		ok, err = repo.SetCheckOutIfEmpty(ctx, rec.ID, at.Add(9*time.Hour))
		if err != nil || ok {
			t.Errorf("expected second check-out to be rejected, got %v (%v)", ok, err)
		}
		got, _ := repo.GetRecord(ctx, alice.ID, day)
		if got.CheckOut == nil || !got.CheckOut.Equal(at.Add(8*time.Hour)) {
			t.Errorf("expected first check-out to stick, got %v", got.CheckOut)
		}
		if got.MatchDistance == nil || *got.MatchDistance != dist {
			t.Errorf("expected match distance %v, got %v", dist, got.MatchDistance)
		}
	})

	t.Run("listing joins identity", func(t *testing.T) {
		late := &database.AttendanceRecord{IdentityID: bob.ID, Day: day, CheckIn: at.Add(time.Hour), Status: database.StatusLate, Source: database.SourceFace}
		if _, err := repo.InsertRecordIfAbsent(ctx, late); err != nil {
			t.Fatalf("insert: %v", err)
		}

		entries, err := repo.ListRecordsByDay(ctx, day)
		if err != nil {
			t.Fatalf("list by day: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(entries))
		}
		if entries[0].Code != "R002" || entries[0].Name != "Bob" {
			t.Errorf("expected newest check-in first, got %+v", entries[0])
		}
		if entries[1].Day != day {
			t.Errorf("expected day %s, got %s", day, entries[1].Day)
		}

		ids, err := repo.RecordedIdentityIDs(ctx, day)
		if err != nil || len(ids) != 2 || ids[0] != alice.ID || ids[1] != bob.ID {
			t.Errorf("unexpected recorded ids %v (%v)", ids, err)
		}
	})

	t.Run("range listing", func(t *testing.T) {
		records, err := repo.ListRecordsBetween(ctx, "2024-03-01", "2024-03-04")
		if err != nil {
			t.Fatalf("list between: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 records in range, got %d", len(records))
		}
	})

	t.Run("validate schema", func(t *testing.T) {
		if err := repo.ValidateSchema(ctx); err != nil {
			t.Errorf("expected valid schema, got %v", err)
		}
	})
}

func TestValidateSchema_MissingColumn(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := db.Migrator().DropColumn(&attendanceModel{}, "check_out"); err != nil {
		t.Skipf("sqlite build cannot drop columns: %v", err)
	}

	err := NewAttendanceRepository(db).ValidateSchema(ctx)
	if !errors.Is(err, database.ErrSchemaMismatch) {
		t.Errorf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestInsertRecordIfAbsent_Concurrent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	alice, _ := NewIdentityRepository(db).CreateIdentity(ctx, "Alice", "R001")
	repo := NewAttendanceRepository(db)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &database.AttendanceRecord{
				IdentityID: alice.ID, Day: "2024-03-04",
				CheckIn: time.Date(2024, 3, 4, 8, i, 0, 0, time.UTC),
				Status:  database.StatusPresent, Source: database.SourceFace,
			}
			ok, err := repo.InsertRecordIfAbsent(ctx, rec)
			if err != nil {
				t.Errorf("insert: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly one insert to win, got %d", wins)
	}
}
