package model

import (
	"errors"
	"testing"
	"time"
)

func TestMarkReturned(t *testing.T) {
	issued := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	returned := time.Date(2025, 1, 11, 15, 30, 0, 0, time.UTC)

	l := Loan{
		ID:       1,
		UserID:   7,
		BookID:   3,
		IssuedAt: issued,
		DueDate:  issued.AddDate(0, 0, 7),
		Status:   LoanStatusIssued,
	}

	if err := l.MarkReturned(returned, 1500); err != nil {
		t.Fatalf("MarkReturned() error = %v", err)
	}

	if l.Status != LoanStatusReturned {
		t.Fatalf("status = %q, want %q", l.Status, LoanStatusReturned)
	}
	if l.ReturnedAt == nil || !l.ReturnedAt.Equal(returned) {
		t.Fatalf("ReturnedAt = %v, want %v", l.ReturnedAt, returned)
	}
	if l.FineAmountCents != 1500 {
		t.Fatalf("FineAmountCents = %d, want 1500", l.FineAmountCents)
	}
}

func TestMarkReturned_Terminal(t *testing.T) {
	returned := time.Date(2025, 1, 11, 15, 30, 0, 0, time.UTC)

	l := Loan{
		ID:     1,
		Status: LoanStatusIssued,
	}

	if err := l.MarkReturned(returned, 500); err != nil {
		t.Fatalf("first MarkReturned() error = %v", err)
	}

	later := returned.AddDate(0, 0, 5)
	err := l.MarkReturned(later, 9999)
	if !errors.Is(err, ErrAlreadyReturned) {
		t.Fatalf("second MarkReturned() error = %v, want ErrAlreadyReturned", err)
	}

	// Повторная попытка не должна трогать поля терминального состояния.
	if !l.ReturnedAt.Equal(returned) {
		t.Fatalf("ReturnedAt changed to %v after failed transition", l.ReturnedAt)
	}
	if l.FineAmountCents != 500 {
		t.Fatalf("FineAmountCents changed to %d after failed transition", l.FineAmountCents)
	}
}
