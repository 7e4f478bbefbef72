package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"feeledger/internal/service"
	"feeledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handler 统一处理器
type Handler struct {
	ledger  *service.LedgerService
	reports *service.ReportService
}

func NewHandler(ledger *service.LedgerService, reports *service.ReportService) *Handler {
	return &Handler{
		ledger:  ledger,
		reports: reports,
	}
}

var kindCodes = map[service.ErrorKind]int{
	service.KindInvalidAmount:           response.CodeInvalidAmount,
	service.KindMissingPaymentMethod:    response.CodeMissingPaymentMethod,
	service.KindMissingGatewayReference: response.CodeMissingGatewayReference,
	service.KindInvalidStatus:           response.CodeInvalidStatus,
	service.KindEnrollmentNotFound:      response.CodeEnrollmentNotFound,
	service.KindTransactionNotFound:     response.CodeTransactionNotFound,
	service.KindAlreadyFinalized:        response.CodeAlreadyFinalized,
	service.KindReferenceAlreadySet:     response.CodeReferenceAlreadySet,
	service.KindRequestIDConflict:       response.CodeRequestIDConflict,
}

// writeError 账本错误按类别映射 HTTP 状态码，其余视为存储暂时不可用
func writeError(c *gin.Context, err error) {
	le, ok := service.AsLedgerError(err)
	if !ok {
		log.Printf("[Handler] %s %s 失败: %v", c.Request.Method, c.Request.URL.Path, err)
		response.Unavailable(c, "服务暂时不可用，请稍后重试")
		return
	}

	status := http.StatusInternalServerError
	switch le.Kind.Class() {
	case service.ClassValidation:
		status = http.StatusBadRequest
	case service.ClassNotFound:
		status = http.StatusNotFound
	case service.ClassConflict:
		status = http.StatusConflict
	}
	response.Fail(c, status, kindCodes[le.Kind], le.Error())
}

func parseEnrollmentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "enrollment id 参数错误")
		return 0, false
	}
	return id, true
}

func optionalMoney(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return response.Money(*d)
}

// ============================================================
// 费用查询
// ============================================================

// GetFeesInformation 费用明细与余额汇总
// GET /enrollment/:id/fees_information
func (h *Handler) GetFeesInformation(c *gin.Context) {
	enrollmentID, ok := parseEnrollmentID(c)
	if !ok {
		return
	}

	info, err := h.reports.GetFeesInformation(c.Request.Context(), enrollmentID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"enrollment_id": info.EnrollmentID,
		"student_id":    info.StudentID,
		"term":          info.Term,
		"currency":      info.Currency,
		"summary": gin.H{
			"total_assessed_fees": response.Money(info.Summary.TotalAssessed),
			"total_amount_paid":   response.Money(info.Summary.TotalAmountPaid),
			"remaining_balance":   response.Money(info.Summary.RemainingBalance),
			"payment_status":      info.Summary.PaymentStatusText,
		},
		"fees_details": gin.H{
			"tuition_fee":        response.Money(info.FeesDetails.TuitionFee),
			"computer_lab_fee":   response.Money(info.FeesDetails.ComputerLabFee),
			"athletic_fee":       response.Money(info.FeesDetails.AthleticFee),
			"library_fee":        response.Money(info.FeesDetails.LibraryFee),
			"miscellaneous_fees": response.Money(info.FeesDetails.MiscellaneousFees),
		},
	})
}

// ============================================================
// 发起支付
// ============================================================

// InitiatePaymentRequest 发起支付请求，amount 可以是数字或字符串
type InitiatePaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Description   string          `json:"description"`
	Currency      string          `json:"currency"`
	RequestID     string          `json:"request_id"` // 可选幂等ID
}

// InitiatePayment 创建 PENDING 交易，返回网关跳转地址
// POST /enrollment/:id/payment_transactions
func (h *Handler) InitiatePayment(c *gin.Context) {
	enrollmentID, ok := parseEnrollmentID(c)
	if !ok {
		return
	}

	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.ledger.InitiatePayment(c.Request.Context(), &service.InitiatePaymentRequest{
		EnrollmentID:  enrollmentID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		Description:   req.Description,
		Currency:      req.Currency,
		RequestID:     req.RequestID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	txn := result.Transaction
	var ts string
	if txn.Timestamp != nil {
		ts = txn.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
	}
	response.Accepted(c, gin.H{
		"transaction_id":      txn.TransactionID,
		"enrollment_id":       txn.EnrollmentID,
		"status":              txn.Status.String(),
		"amount_due":          response.Money(txn.Amount),
		"currency":            txn.Currency,
		"payment_gateway_url": result.PaymentGatewayURL,
		"timestamp":           ts,
		"replayed":            result.Replayed,
	})
}

// ============================================================
// 网关回调
// ============================================================

type GatewayCallbackRequest struct {
	GatewayReference string `json:"gateway_reference"`
	StatusCode       string `json:"status_code"`
}

// ApplyGatewayCallback 网关回调，推进交易状态
// POST /transactions/:transaction_id
func (h *Handler) ApplyGatewayCallback(c *gin.Context) {
	var req GatewayCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.ledger.ApplyGatewayCallback(c.Request.Context(), &service.GatewayCallbackRequest{
		TransactionID:    c.Param("transaction_id"),
		GatewayReference: req.GatewayReference,
		StatusCode:       req.StatusCode,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	var balance *decimal.Decimal
	if result.Balance != nil {
		balance = &result.Balance.RemainingBalance
	}
	response.Success(c, gin.H{
		"transaction_id":  result.Transaction.TransactionID,
		"status":          result.Transaction.Status.String(),
		"updated_balance": optionalMoney(balance),
		"message":         "Payment successfully recorded.",
	})
}

// ============================================================
// 交易查询
// ============================================================

// GetTransaction 单笔交易详情
// GET /transactions/:transaction_id
func (h *Handler) GetTransaction(c *gin.Context) {
	detail, err := h.reports.GetTransactionDetail(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_id":   detail.TransactionID,
		"date":             detail.Date,
		"student_id":       detail.StudentID,
		"amount_paid":      response.Money(detail.AmountPaid),
		"currency":         detail.Currency,
		"payment_method":   detail.PaymentMethod,
		"reference_number": detail.ReferenceNumber,
		"status":           detail.Status,
		"description":      detail.Description,
	})
}

// HistoryItem 交易历史条目
type HistoryItem struct {
	TransactionID string      `json:"transaction_id"`
	Date          string      `json:"date"`
	Amount        json.Number `json:"amount"`
	Status        string      `json:"status"`
	Type          string      `json:"type"`
}

// GetTransactionHistory 交易历史，按日期倒序
// GET /enrollment/:id/transaction_history
func (h *Handler) GetTransactionHistory(c *gin.Context) {
	enrollmentID, ok := parseEnrollmentID(c)
	if !ok {
		return
	}

	history, err := h.reports.GetTransactionHistory(c.Request.Context(), enrollmentID)
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]HistoryItem, 0, len(history.Transactions))
	for _, e := range history.Transactions {
		items = append(items, HistoryItem{
			TransactionID: e.TransactionID,
			Date:          e.Date,
			Amount:        response.Money(e.Amount),
			Status:        e.Status,
			Type:          e.Type,
		})
	}

	response.Success(c, gin.H{
		"enrollment_id": history.EnrollmentID,
		"total_paid":    response.Money(history.TotalPaid),
		"transactions":  items,
	})
}
