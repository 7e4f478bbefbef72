package model

import (
	"errors"
	"fmt"
	"strings"
)

// PaymentStatus 交易状态，取值固定为 PENDING / COMPLETED / FAILED
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

var ErrInvalidStatus = errors.New("无效的交易状态")

var statusText = map[PaymentStatus]string{
	PaymentStatusPending:   "PENDING",
	PaymentStatusCompleted: "COMPLETED",
	PaymentStatusFailed:    "FAILED",
}

// 只允许从 PENDING 出发，终态不可再变
var ValidStatusTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusCompleted, PaymentStatusFailed},
}

// Describe 返回状态的文本表示，未知状态直接报错而不是给默认值
func Describe(status PaymentStatus) (string, error) {
	text, ok := statusText[status]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, string(status))
	}
	return text, nil
}

// ParseStatus 将网关回调里的 status_code 解析为状态
func ParseStatus(code string) (PaymentStatus, error) {
	status := PaymentStatus(strings.TrimSpace(code))
	if _, ok := statusText[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, code)
	}
	return status, nil
}

// IsTerminal 终态：COMPLETED 或 FAILED
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

func (s PaymentStatus) String() string {
	return string(s)
}

func CanTransitionTo(current, target PaymentStatus) bool {
	allowed, exists := ValidStatusTransitions[current]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}
