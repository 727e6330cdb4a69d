package database

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2024-03-04", false},
		{"2024-02-30", true},
		{"04.03.2024", true},
		{"", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			day, err := ParseDay(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseDay(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if !tc.wantErr && day.String() != tc.in {
				t.Errorf("expected %s, got %s", tc.in, day)
			}
		})
	}
}

func TestDayOf_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC).In(loc)
	if got := DayOf(at); got != "2024-03-05" {
		t.Errorf("expected local calendar day 2024-03-05, got %s", got)
	}
}

func TestMissingColumnsError(t *testing.T) {
	all := map[string]bool{"day": true, "check_in": true, "check_out": true, "status": true}
	if err := MissingColumnsError(all); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	err := MissingColumnsError(map[string]bool{"day": true, "status": true})
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "check_in, check_out") {
		t.Errorf("expected missing columns to be named, got %v", err)
	}
}
