package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"feeledger/internal/model"
	"feeledger/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	demoEnrollmentID  = int64(1001)
	demoTransactionID = "TXN-112233"
)

func demoAssessment() *model.FeeAssessment {
	return &model.FeeAssessment{
		EnrollmentID:     demoEnrollmentID,
		StudentID:        "S-2023-005",
		Term:             "Fall 2024",
		Currency:         "PHP",
		TuitionFee:       decimal.RequireFromString("10000.00"),
		ComputerLabFee:   decimal.RequireFromString("500.00"),
		AthleticFee:      decimal.RequireFromString("200.00"),
		CulturalFee:      decimal.RequireFromString("500.00"),
		InternetFee:      decimal.RequireFromString("500.00"),
		LibraryFee:       decimal.RequireFromString("300.00"),
		MedicalDentalFee: decimal.RequireFromString("1000.00"),
		RegistrationFee:  decimal.RequireFromString("1000.00"),
		SchoolPubFee:     decimal.RequireFromString("500.00"),
		IDValidationFee:  decimal.RequireFromString("500.00"),
		TotalAssessed:    decimal.RequireFromString("15000.00"),
	}
}

func demoTransaction() *model.PaymentTransaction {
	ts := time.Date(2024, 8, 15, 9, 0, 0, 0, time.UTC)
	ref := "REF-OLD-1"
	return &model.PaymentTransaction{
		TransactionID:  demoTransactionID,
		EnrollmentID:   demoEnrollmentID,
		Amount:         decimal.RequireFromString("10000.00"),
		Currency:       "PHP",
		PaymentMethod:  "Over Counter",
		TransactionRef: &ref,
		Status:         model.PaymentStatusCompleted,
		Timestamp:      &ts,
		Description:    "Downpayment",
	}
}

// SeedDemoData 写入演示数据（enrollment 1001），重复执行无副作用
func SeedDemoData(ctx context.Context, db *gorm.DB) error {
	assessments := repository.NewAssessmentRepository(db)
	transactions := repository.NewTransactionRepository(db)

	if err := assessments.CreateIfAbsent(ctx, demoAssessment()); err != nil {
		return fmt.Errorf("写入演示费用评估失败: %w", err)
	}

	_, err := transactions.GetByTransactionID(ctx, demoTransactionID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrTransactionNotFound) {
		return err
	}

	if err := transactions.Create(ctx, demoTransaction()); err != nil && !errors.Is(err, repository.ErrDuplicateTransaction) {
		return fmt.Errorf("写入演示交易失败: %w", err)
	}

	log.Printf("演示数据已写入: enrollment_id=%d", demoEnrollmentID)
	return nil
}
