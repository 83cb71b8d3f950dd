package domain

import (
	"testing"
	"time"
)

func TestFineDueDateLandsAtEndOfDay(t *testing.T) {
	issuedAt := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	due := FineDueDate(issuedAt, 3)

	want := time.Date(2026, 3, 13, 23, 59, 59, 999_000_000, time.UTC)
	if !due.Equal(want) {
		t.Fatalf("expected %v, got %v", want, due)
	}
}

func TestFineDueDateCrossesMonthBoundary(t *testing.T) {
	issuedAt := time.Date(2026, 1, 30, 22, 0, 0, 0, time.UTC)

	due := FineDueDate(issuedAt, 2)

	want := time.Date(2026, 2, 1, 23, 59, 59, 999_000_000, time.UTC)
	if !due.Equal(want) {
		t.Fatalf("expected %v, got %v", want, due)
	}
}

func TestFineDueDateKeepsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	issuedAt := time.Date(2026, 3, 10, 23, 45, 0, 0, loc)

	due := FineDueDate(issuedAt, 1)

	if due.Location() != loc {
		t.Fatalf("due date should stay in the issuing location, got %v", due.Location())
	}
	if due.Day() != 11 || due.Hour() != 23 || due.Minute() != 59 {
		t.Fatalf("unexpected due date %v", due)
	}
}
