package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"feeledger/internal/config"
	"feeledger/internal/model"
	"feeledger/internal/repository"
	"feeledger/pkg/idgen"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusTextPaid    = "Paid"
	PaymentStatusTextPartial = "Partial"
	PaymentStatusTextPending = "Pending"
	PaymentStatusTextUnpaid  = "Unpaid"
)

// 交易号冲突时的最大重试次数
const maxIDAttempts = 3

// 金额列为 decimal(12,2)
var maxAmount = decimal.RequireFromString("9999999999.99")

// LedgerService 账本核心：余额计算、状态机、交易创建
type LedgerService struct {
	assessments     AssessmentStore
	transactions    TransactionStore
	publisher       EventPublisher
	outbox          OutboxStore
	encoder         EventEncoder
	locker          CallbackLocker
	newID           func() string
	now             func() time.Time
	storeTimeout    time.Duration
	defaultCurrency string
	checkoutURL     string
}

type Option func(*LedgerService)

func WithPublisher(p EventPublisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

// WithOutbox 状态变更与事件同事务写入
func WithOutbox(store OutboxStore, encoder EventEncoder) Option {
	return func(s *LedgerService) {
		s.outbox = store
		s.encoder = encoder
	}
}

func WithCallbackLocker(l CallbackLocker) Option {
	return func(s *LedgerService) { s.locker = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *LedgerService) { s.newID = gen }
}

func NewLedgerService(assessments AssessmentStore, transactions TransactionStore, cfg *config.Config, opts ...Option) *LedgerService {
	s := &LedgerService{
		assessments:     assessments,
		transactions:    transactions,
		newID:           idgen.GenerateTransactionNo,
		now:             time.Now,
		storeTimeout:    cfg.Ledger.StoreTimeout(),
		defaultCurrency: cfg.Ledger.DefaultCurrency,
		checkoutURL:     cfg.Gateway.CheckoutURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BalanceSnapshot 余额快照，按需计算，不落库
type BalanceSnapshot struct {
	EnrollmentID      int64
	Currency          string
	TotalAssessed     decimal.Decimal
	TotalAmountPaid   decimal.Decimal
	RemainingBalance  decimal.Decimal
	PaymentStatusText string
}

type InitiatePaymentRequest struct {
	EnrollmentID  int64
	Amount        decimal.Decimal
	PaymentMethod string
	Description   string
	Currency      string // 为空时使用默认币种
	RequestID     string // 可选幂等ID
}

type InitiatePaymentResult struct {
	Transaction       *model.PaymentTransaction
	PaymentGatewayURL string
	Replayed          bool // 相同 request_id 的重放，返回的是已有交易
}

type GatewayCallbackRequest struct {
	TransactionID    string
	GatewayReference string
	StatusCode       string
}

type GatewayCallbackResult struct {
	Transaction *model.PaymentTransaction
	Balance     *BalanceSnapshot // 费用评估缺失时为 nil
}

func (s *LedgerService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

// ============================================================
// 存储访问：统一加超时，并把存储层哨兵错误翻译成账本错误
// ============================================================

func (s *LedgerService) loadAssessment(ctx context.Context, enrollmentID int64) (*model.FeeAssessment, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	assessment, err := s.assessments.GetByEnrollmentID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, repository.ErrAssessmentNotFound) {
			return nil, &LedgerError{Kind: KindEnrollmentNotFound, EnrollmentID: enrollmentID}
		}
		return nil, fmt.Errorf("查询费用评估失败: %w", err)
	}
	return assessment, nil
}

func (s *LedgerService) listTransactions(ctx context.Context, enrollmentID int64) ([]*model.PaymentTransaction, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	transactions, err := s.transactions.ListByEnrollmentID(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("查询交易列表失败: %w", err)
	}
	return transactions, nil
}

func (s *LedgerService) loadTransaction(ctx context.Context, transactionID string) (*model.PaymentTransaction, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	txn, err := s.transactions.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, &LedgerError{Kind: KindTransactionNotFound, TransactionID: transactionID}
		}
		return nil, fmt.Errorf("查询交易失败: %w", err)
	}
	return txn, nil
}

func (s *LedgerService) loadByRequestID(ctx context.Context, requestID string) (*model.PaymentTransaction, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	txn, err := s.transactions.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("查询幂等记录失败: %w", err)
	}
	return txn, nil
}

func (s *LedgerService) createTransaction(ctx context.Context, txn *model.PaymentTransaction) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	return s.transactions.Create(ctx, txn)
}

func (s *LedgerService) updateIfPending(ctx context.Context, txn *model.PaymentTransaction, status model.PaymentStatus, ref string) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	var err error
	if s.outbox != nil && s.encoder != nil {
		next := *txn
		next.Status = status
		next.TransactionRef = &ref
		event, encErr := s.encoder.EncodeStatusChanged(&next)
		if encErr != nil {
			return fmt.Errorf("编码状态变更事件失败: %w", encErr)
		}
		err = s.outbox.UpdateStatusIfPendingWithEvent(ctx, txn.TransactionID, status, ref, event)
	} else {
		err = s.transactions.UpdateStatusIfPending(ctx, txn.TransactionID, status, ref)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrTransactionNotFound):
		return &LedgerError{Kind: KindTransactionNotFound, TransactionID: txn.TransactionID}
	case errors.Is(err, repository.ErrTransactionNotPending):
		// 并发回调中输掉的一方
		return &LedgerError{
			Kind:          KindAlreadyFinalized,
			EnrollmentID:  txn.EnrollmentID,
			TransactionID: txn.TransactionID,
			Detail:        "并发回调已先一步完成状态变更",
		}
	case errors.Is(err, repository.ErrReferenceAlreadySet):
		return &LedgerError{Kind: KindReferenceAlreadySet, EnrollmentID: txn.EnrollmentID, TransactionID: txn.TransactionID}
	case errors.Is(err, model.ErrInvalidStatus):
		return &LedgerError{Kind: KindInvalidStatus, TransactionID: txn.TransactionID, Detail: string(status)}
	default:
		return fmt.Errorf("更新交易状态失败: %w", err)
	}
}

// ============================================================
// 余额计算
// ============================================================

// SummarizeBalance 纯计算：只统计 COMPLETED 的交易
//
// 【关键点】判断顺序：先判 Paid 再判 Partial，
// 应缴为 0 且未付款的注册不能显示为 Paid
func SummarizeBalance(assessment *model.FeeAssessment, transactions []*model.PaymentTransaction) *BalanceSnapshot {
	paid := TotalCompleted(transactions)
	remaining := assessment.TotalAssessed.Sub(paid)

	var text string
	switch {
	case remaining.LessThanOrEqual(decimal.Zero) && assessment.TotalAssessed.IsPositive():
		text = PaymentStatusTextPaid
	case paid.IsPositive() && paid.LessThan(assessment.TotalAssessed):
		text = PaymentStatusTextPartial
	case hasPending(transactions):
		text = PaymentStatusTextPending
	default:
		text = PaymentStatusTextUnpaid
	}

	return &BalanceSnapshot{
		EnrollmentID:      assessment.EnrollmentID,
		Currency:          assessment.Currency,
		TotalAssessed:     assessment.TotalAssessed,
		TotalAmountPaid:   paid,
		RemainingBalance:  remaining,
		PaymentStatusText: text,
	}
}

// TotalCompleted PENDING 和 FAILED 一律不计入
func TotalCompleted(transactions []*model.PaymentTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, txn := range transactions {
		if txn.Status == model.PaymentStatusCompleted {
			total = total.Add(txn.Amount)
		}
	}
	return total
}

func hasPending(transactions []*model.PaymentTransaction) bool {
	for _, txn := range transactions {
		if txn.Status == model.PaymentStatusPending {
			return true
		}
	}
	return false
}

// ComputeBalance 计算注册的当前余额
func (s *LedgerService) ComputeBalance(ctx context.Context, enrollmentID int64) (*BalanceSnapshot, error) {
	assessment, err := s.loadAssessment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	transactions, err := s.listTransactions(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	return SummarizeBalance(assessment, transactions), nil
}

// ============================================================
// 发起支付
// ============================================================

func validateInitiate(req *InitiatePaymentRequest) error {
	if !req.Amount.IsPositive() {
		return &LedgerError{Kind: KindInvalidAmount, EnrollmentID: req.EnrollmentID, Detail: req.Amount.String()}
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return &LedgerError{Kind: KindInvalidAmount, EnrollmentID: req.EnrollmentID, Detail: "金额最多两位小数: " + req.Amount.String()}
	}
	if req.Amount.GreaterThan(maxAmount) {
		return &LedgerError{Kind: KindInvalidAmount, EnrollmentID: req.EnrollmentID, Detail: "金额超出上限: " + req.Amount.String()}
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return &LedgerError{Kind: KindMissingPaymentMethod, EnrollmentID: req.EnrollmentID}
	}
	return nil
}

func (s *LedgerService) gatewayURL(transactionID string) string {
	return s.checkoutURL + "?token=" + url.QueryEscape(transactionID)
}

// replay 校验幂等重放是否与原请求一致
func (s *LedgerService) replay(existing *model.PaymentTransaction, req *InitiatePaymentRequest, requestID string) (*InitiatePaymentResult, error) {
	if existing.EnrollmentID != req.EnrollmentID || !existing.Amount.Equal(req.Amount) {
		return nil, &LedgerError{
			Kind:          KindRequestIDConflict,
			EnrollmentID:  req.EnrollmentID,
			TransactionID: existing.TransactionID,
			Detail:        requestID,
		}
	}
	return &InitiatePaymentResult{
		Transaction:       existing,
		PaymentGatewayURL: s.gatewayURL(existing.TransactionID),
		Replayed:          true,
	}, nil
}

// InitiatePayment 创建一笔 PENDING 交易
//
// 不校验 enrollment 是否存在，缺失的费用评估在计算余额时才报 EnrollmentNotFound
func (s *LedgerService) InitiatePayment(ctx context.Context, req *InitiatePaymentRequest) (*InitiatePaymentResult, error) {
	if err := validateInitiate(req); err != nil {
		return nil, err
	}

	var requestID *string
	if rid := strings.TrimSpace(req.RequestID); rid != "" {
		requestID = &rid

		existing, err := s.loadByRequestID(ctx, rid)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return s.replay(existing, req, rid)
		}
	}

	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}

	now := s.now().UTC()
	txn := &model.PaymentTransaction{
		EnrollmentID:  req.EnrollmentID,
		RequestID:     requestID,
		Amount:        req.Amount,
		Currency:      currency,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		Status:        model.PaymentStatusPending,
		Timestamp:     &now,
		Description:   strings.TrimSpace(req.Description),
	}

	for attempt := 1; ; attempt++ {
		txn.TransactionID = s.newID()
		err := s.createTransaction(ctx, txn)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateTransaction) {
			return nil, fmt.Errorf("创建交易失败: %w", err)
		}

		// 并发的同 request_id 请求先落库了
		if requestID != nil {
			existing, lookupErr := s.loadByRequestID(ctx, *requestID)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing != nil {
				return s.replay(existing, req, *requestID)
			}
		}
		if attempt >= maxIDAttempts {
			return nil, fmt.Errorf("创建交易失败: %w", err)
		}
	}

	log.Printf("发起支付: transactionID=%s, enrollmentID=%d, amount=%s %s",
		txn.TransactionID, txn.EnrollmentID, txn.Amount.StringFixed(2), txn.Currency)

	return &InitiatePaymentResult{
		Transaction:       txn,
		PaymentGatewayURL: s.gatewayURL(txn.TransactionID),
	}, nil
}

// ============================================================
// 网关回调
// ============================================================

// ApplyGatewayCallback 处理网关回调，把 PENDING 交易推进到终态
//
// 【关键点】
// 1. 终态交易一律拒绝（AlreadyFinalized），重复回调不会重复入账
// 2. 流水号只写一次（ReferenceAlreadySet），防止伪造的第二次回调
// 3. 真正的互斥由存储层的条件更新保证，回调锁只是让重复投递排队
func (s *LedgerService) ApplyGatewayCallback(ctx context.Context, req *GatewayCallbackRequest) (*GatewayCallbackResult, error) {
	transactionID := strings.TrimSpace(req.TransactionID)
	if transactionID == "" {
		return nil, &LedgerError{Kind: KindTransactionNotFound}
	}

	ref := strings.TrimSpace(req.GatewayReference)
	if ref == "" {
		return nil, &LedgerError{Kind: KindMissingGatewayReference, TransactionID: transactionID}
	}

	status, err := model.ParseStatus(req.StatusCode)
	if err != nil {
		return nil, &LedgerError{Kind: KindInvalidStatus, TransactionID: transactionID, Detail: req.StatusCode}
	}
	if !status.IsTerminal() {
		return nil, &LedgerError{Kind: KindInvalidStatus, TransactionID: transactionID, Detail: "回调状态必须是 COMPLETED 或 FAILED"}
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, transactionID)
		if err != nil {
			return nil, fmt.Errorf("获取回调锁失败: %w", err)
		}
		defer release()
	}

	txn, err := s.loadTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	if txn.Status.IsTerminal() {
		return nil, &LedgerError{
			Kind:          KindAlreadyFinalized,
			EnrollmentID:  txn.EnrollmentID,
			TransactionID: txn.TransactionID,
			CurrentStatus: txn.Status,
		}
	}
	if txn.TransactionRef != nil {
		return nil, &LedgerError{Kind: KindReferenceAlreadySet, EnrollmentID: txn.EnrollmentID, TransactionID: txn.TransactionID}
	}

	if err := s.updateIfPending(ctx, txn, status, ref); err != nil {
		return nil, err
	}

	txn.Status = status
	txn.TransactionRef = &ref

	log.Printf("回调处理成功: transactionID=%s, enrollmentID=%d, status=%s, ref=%s",
		txn.TransactionID, txn.EnrollmentID, status, ref)

	s.publish(ctx, txn)

	balance, err := s.ComputeBalance(ctx, txn.EnrollmentID)
	if err != nil {
		if errors.Is(err, ErrEnrollmentNotFound) {
			log.Printf("回调对应的注册没有费用评估，余额未定义: enrollmentID=%d", txn.EnrollmentID)
			return &GatewayCallbackResult{Transaction: txn}, nil
		}
		return nil, err
	}

	return &GatewayCallbackResult{Transaction: txn, Balance: balance}, nil
}

func (s *LedgerService) publish(ctx context.Context, txn *model.PaymentTransaction) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.publisher.PaymentStatusChanged(ctx, txn); err != nil {
		// 状态已提交，事件丢失只记录日志
		log.Printf("写入状态变更事件失败: transactionID=%s, err=%v", txn.TransactionID, err)
	}
}

// GetTransaction 按交易号查询
func (s *LedgerService) GetTransaction(ctx context.Context, transactionID string) (*model.PaymentTransaction, error) {
	return s.loadTransaction(ctx, transactionID)
}
