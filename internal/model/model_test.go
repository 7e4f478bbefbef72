package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDescribe(t *testing.T) {
	tests := []struct {
		status  PaymentStatus
		want    string
		wantErr bool
	}{
		{PaymentStatusPending, "PENDING", false},
		{PaymentStatusCompleted, "COMPLETED", false},
		{PaymentStatusFailed, "FAILED", false},
		{PaymentStatus("REFUNDED"), "", true},
		{PaymentStatus(""), "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got, err := Describe(tt.status)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidStatus) {
					t.Fatalf("expected ErrInvalidStatus, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" COMPLETED "); err != nil || s != PaymentStatusCompleted {
		t.Errorf("got %v, %v", s, err)
	}
	if _, err := ParseStatus("completed"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("lowercase code should be rejected, got %v", err)
	}
}

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusCompleted, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusPending, PaymentStatusPending, false},
		{PaymentStatusCompleted, PaymentStatusFailed, false},
		{PaymentStatusCompleted, PaymentStatusCompleted, false},
		{PaymentStatusFailed, PaymentStatusCompleted, false},
	}

	for _, tt := range tests {
		if got := CanTransitionTo(tt.from, tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestFeeAssessmentSums(t *testing.T) {
	f := &FeeAssessment{
		TuitionFee:       decimal.NewFromInt(10000),
		ComputerLabFee:   decimal.NewFromInt(500),
		AthleticFee:      decimal.NewFromInt(200),
		CulturalFee:      decimal.NewFromInt(500),
		InternetFee:      decimal.NewFromInt(500),
		LibraryFee:       decimal.NewFromInt(300),
		MedicalDentalFee: decimal.NewFromInt(1000),
		RegistrationFee:  decimal.NewFromInt(1000),
		SchoolPubFee:     decimal.NewFromInt(500),
		IDValidationFee:  decimal.NewFromInt(500),
		TotalAssessed:    decimal.NewFromInt(16000),
	}

	if got := f.MiscellaneousFees(); !got.Equal(decimal.NewFromInt(4000)) {
		t.Errorf("misc: got %s, want 4000", got)
	}
	if got := f.ComponentSum(); !got.Equal(decimal.NewFromInt(15000)) {
		t.Errorf("component sum: got %s, want 15000", got)
	}
}

func TestTransactionDate(t *testing.T) {
	ts := time.Date(2024, 8, 15, 9, 0, 0, 0, time.UTC)
	txn := &PaymentTransaction{Timestamp: &ts}
	if got := txn.Date(); got != "2024-08-15" {
		t.Errorf("got %s", got)
	}
	if got := (&PaymentTransaction{}).Date(); got != "" {
		t.Errorf("missing timestamp should render empty, got %s", got)
	}
}
