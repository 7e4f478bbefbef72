package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeAssessment 学期费用评估表
// 每个 enrollment 一条记录，由外部流程在注册时写入，账本只读不改
//
// 【注意】TotalAssessed 与各分项之和不保证一致：
// 余额计算以 TotalAssessed 为准，杂费明细以分项之和为准
type FeeAssessment struct {
	FeeRecordID      int64           `gorm:"primaryKey;autoIncrement" json:"fee_record_id"`
	EnrollmentID     int64           `gorm:"uniqueIndex;not null" json:"enrollment_id"`
	StudentID        string          `gorm:"type:varchar(64)" json:"student_id"`
	Term             string          `gorm:"type:varchar(64)" json:"term"`
	Currency         string          `gorm:"type:varchar(8);not null" json:"currency"`
	TuitionFee       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tuition_fee"`
	ComputerLabFee   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"computer_lab_fee"`
	AthleticFee      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"athletic_fee"`
	CulturalFee      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"cultural_fee"`
	InternetFee      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"internet_fee"`
	LibraryFee       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"library_fee"`
	MedicalDentalFee decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"medical_dental_fee"`
	RegistrationFee  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"registration_fee"`
	SchoolPubFee     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"school_pub_fee"`
	IDValidationFee  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"id_validation_fee"`
	TotalAssessed    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_assessed"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (FeeAssessment) TableName() string {
	return "fees_information"
}

// MiscellaneousFees 除学费、机房、体育、图书馆外其余分项之和
func (f *FeeAssessment) MiscellaneousFees() decimal.Decimal {
	return decimal.Sum(
		f.CulturalFee,
		f.InternetFee,
		f.MedicalDentalFee,
		f.RegistrationFee,
		f.SchoolPubFee,
		f.IDValidationFee,
	)
}

// ComponentSum 全部分项之和，仅用于对账，不参与余额计算
func (f *FeeAssessment) ComponentSum() decimal.Decimal {
	return decimal.Sum(
		f.TuitionFee,
		f.ComputerLabFee,
		f.AthleticFee,
		f.LibraryFee,
		f.MiscellaneousFees(),
	)
}
