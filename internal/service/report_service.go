package service

import (
	"context"
	"sort"
	"strings"

	"feeledger/internal/model"

	"github.com/shopspring/decimal"
)

const (
	TransactionTypeFinalInstallment = "Final Installment"
	TransactionTypeDownpayment      = "Downpayment/Partial Payment"
)

// ReportService 在账本核心之上生成费用明细与交易历史
type ReportService struct {
	ledger *LedgerService
}

func NewReportService(ledger *LedgerService) *ReportService {
	return &ReportService{ledger: ledger}
}

// FeeDetails 四个主要分项单独列出，其余合并为杂费
type FeeDetails struct {
	TuitionFee        decimal.Decimal
	ComputerLabFee    decimal.Decimal
	AthleticFee       decimal.Decimal
	LibraryFee        decimal.Decimal
	MiscellaneousFees decimal.Decimal
}

type FeesInformation struct {
	EnrollmentID int64
	StudentID    string
	Term         string
	Currency     string
	Summary      *BalanceSnapshot
	FeesDetails  FeeDetails
}

type HistoryEntry struct {
	TransactionID string
	Date          string
	Amount        decimal.Decimal
	Status        string
	Type          string
}

type TransactionHistory struct {
	EnrollmentID int64
	TotalPaid    decimal.Decimal
	Transactions []HistoryEntry
}

type TransactionDetail struct {
	TransactionID   string
	Date            string
	StudentID       string
	AmountPaid      decimal.Decimal
	Currency        string
	PaymentMethod   string
	ReferenceNumber *string
	Status          string
	Description     string
}

// BuildFeeDetails 杂费取分项之和，而不是 TotalAssessed 减去四个主要分项
func BuildFeeDetails(assessment *model.FeeAssessment) FeeDetails {
	return FeeDetails{
		TuitionFee:        assessment.TuitionFee,
		ComputerLabFee:    assessment.ComputerLabFee,
		AthleticFee:       assessment.AthleticFee,
		LibraryFee:        assessment.LibraryFee,
		MiscellaneousFees: assessment.MiscellaneousFees(),
	}
}

// ClassifyTransaction 备注里含 final（不区分大小写）视为尾款
func ClassifyTransaction(description string) string {
	if strings.Contains(strings.ToLower(description), "final") {
		return TransactionTypeFinalInstallment
	}
	return TransactionTypeDownpayment
}

// GetFeesInformation 费用汇总 + 明细
func (s *ReportService) GetFeesInformation(ctx context.Context, enrollmentID int64) (*FeesInformation, error) {
	assessment, err := s.ledger.loadAssessment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	transactions, err := s.ledger.listTransactions(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	return &FeesInformation{
		EnrollmentID: enrollmentID,
		StudentID:    assessment.StudentID,
		Term:         assessment.Term,
		Currency:     assessment.Currency,
		Summary:      SummarizeBalance(assessment, transactions),
		FeesDetails:  BuildFeeDetails(assessment),
	}, nil
}

// BuildHistory 按日期倒序；同一天保持插入顺序；没有时间戳的排最后（视为最早）
//
// transactions 必须按插入顺序传入
func BuildHistory(transactions []*model.PaymentTransaction) ([]HistoryEntry, error) {
	ordered := make([]*model.PaymentTransaction, len(transactions))
	copy(ordered, transactions)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date() > ordered[j].Date()
	})

	entries := make([]HistoryEntry, 0, len(ordered))
	for _, txn := range ordered {
		status, err := model.Describe(txn.Status)
		if err != nil {
			return nil, &LedgerError{Kind: KindInvalidStatus, EnrollmentID: txn.EnrollmentID, TransactionID: txn.TransactionID, Detail: string(txn.Status)}
		}
		entries = append(entries, HistoryEntry{
			TransactionID: txn.TransactionID,
			Date:          txn.Date(),
			Amount:        txn.Amount,
			Status:        status,
			Type:          ClassifyTransaction(txn.Description),
		})
	}
	return entries, nil
}

// GetTransactionHistory 没有交易时返回空列表而不是错误
func (s *ReportService) GetTransactionHistory(ctx context.Context, enrollmentID int64) (*TransactionHistory, error) {
	transactions, err := s.ledger.listTransactions(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	entries, err := BuildHistory(transactions)
	if err != nil {
		return nil, err
	}

	return &TransactionHistory{
		EnrollmentID: enrollmentID,
		TotalPaid:    TotalCompleted(transactions),
		Transactions: entries,
	}, nil
}

// GetTransactionDetail 交易详情，学号取自费用评估，评估缺失时留空
func (s *ReportService) GetTransactionDetail(ctx context.Context, transactionID string) (*TransactionDetail, error) {
	txn, err := s.ledger.loadTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	status, err := model.Describe(txn.Status)
	if err != nil {
		return nil, &LedgerError{Kind: KindInvalidStatus, TransactionID: txn.TransactionID, Detail: string(txn.Status)}
	}

	var studentID string
	assessment, err := s.ledger.loadAssessment(ctx, txn.EnrollmentID)
	switch {
	case err == nil:
		studentID = assessment.StudentID
	case !IsNotFound(err):
		return nil, err
	}

	return &TransactionDetail{
		TransactionID:   txn.TransactionID,
		Date:            txn.Date(),
		StudentID:       studentID,
		AmountPaid:      txn.Amount,
		Currency:        txn.Currency,
		PaymentMethod:   txn.PaymentMethod,
		ReferenceNumber: txn.TransactionRef,
		Status:          status,
		Description:     txn.Description,
	}, nil
}
