package service

import (
	"errors"
	"fmt"
	"strings"

	"feeledger/internal/model"
)

// ErrorKind 账本错误类型
type ErrorKind string

const (
	// 参数校验类：调用方可修正，不重试
	KindInvalidAmount           ErrorKind = "InvalidAmount"
	KindMissingPaymentMethod    ErrorKind = "MissingPaymentMethod"
	KindMissingGatewayReference ErrorKind = "MissingGatewayReference"
	KindInvalidStatus           ErrorKind = "InvalidStatus"

	// 不存在类
	KindEnrollmentNotFound  ErrorKind = "EnrollmentNotFound"
	KindTransactionNotFound ErrorKind = "TransactionNotFound"

	// 冲突类：重复投递或并发回调的正常结果
	KindAlreadyFinalized    ErrorKind = "AlreadyFinalized"
	KindReferenceAlreadySet ErrorKind = "ReferenceAlreadySet"
	KindRequestIDConflict   ErrorKind = "RequestIDConflict"
)

// ErrorClass 错误大类，决定调用方的处理方式
type ErrorClass int

const (
	ClassValidation ErrorClass = iota + 1
	ClassNotFound
	ClassConflict
)

var kindMessages = map[ErrorKind]string{
	KindInvalidAmount:           "金额必须为正数",
	KindMissingPaymentMethod:    "支付方式不能为空",
	KindMissingGatewayReference: "网关流水号不能为空",
	KindInvalidStatus:           "无效的交易状态",
	KindEnrollmentNotFound:      "注册记录不存在",
	KindTransactionNotFound:     "交易不存在",
	KindAlreadyFinalized:        "交易已处于终态",
	KindReferenceAlreadySet:     "网关流水号已写入",
	KindRequestIDConflict:       "request_id 已被其他交易使用",
}

func (k ErrorKind) Class() ErrorClass {
	switch k {
	case KindEnrollmentNotFound, KindTransactionNotFound:
		return ClassNotFound
	case KindAlreadyFinalized, KindReferenceAlreadySet, KindRequestIDConflict:
		return ClassConflict
	default:
		return ClassValidation
	}
}

// LedgerError 带上出错标识的结构化错误
type LedgerError struct {
	Kind          ErrorKind
	EnrollmentID  int64
	TransactionID string
	CurrentStatus model.PaymentStatus // 冲突类错误时记录交易当前状态
	Detail        string
}

func (e *LedgerError) Error() string {
	var b strings.Builder
	b.WriteString(kindMessages[e.Kind])
	if e.EnrollmentID != 0 {
		fmt.Fprintf(&b, ", enrollment_id=%d", e.EnrollmentID)
	}
	if e.TransactionID != "" {
		fmt.Fprintf(&b, ", transaction_id=%s", e.TransactionID)
	}
	if e.CurrentStatus != "" {
		fmt.Fprintf(&b, ", current_status=%s", e.CurrentStatus)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Is 只按 Kind 比较，方便 errors.Is(err, service.ErrAlreadyFinalized)
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidAmount           = &LedgerError{Kind: KindInvalidAmount}
	ErrMissingPaymentMethod    = &LedgerError{Kind: KindMissingPaymentMethod}
	ErrMissingGatewayReference = &LedgerError{Kind: KindMissingGatewayReference}
	ErrInvalidStatus           = &LedgerError{Kind: KindInvalidStatus}
	ErrEnrollmentNotFound      = &LedgerError{Kind: KindEnrollmentNotFound}
	ErrTransactionNotFound     = &LedgerError{Kind: KindTransactionNotFound}
	ErrAlreadyFinalized        = &LedgerError{Kind: KindAlreadyFinalized}
	ErrReferenceAlreadySet     = &LedgerError{Kind: KindReferenceAlreadySet}
	ErrRequestIDConflict       = &LedgerError{Kind: KindRequestIDConflict}
)

// AsLedgerError 非账本错误（存储故障、超时）返回 nil, false
func AsLedgerError(err error) (*LedgerError, bool) {
	var le *LedgerError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

func IsValidation(err error) bool {
	le, ok := AsLedgerError(err)
	return ok && le.Kind.Class() == ClassValidation
}

func IsNotFound(err error) bool {
	le, ok := AsLedgerError(err)
	return ok && le.Kind.Class() == ClassNotFound
}

func IsConflict(err error) bool {
	le, ok := AsLedgerError(err)
	return ok && le.Kind.Class() == ClassConflict
}
