package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentTransaction 支付交易表
//
// 【重要】交易表设计原则：
// 1. 只追加，不删除，更正通过新交易完成
// 2. 金额创建后不可修改
// 3. 状态只能 PENDING -> COMPLETED / FAILED 一次
// 4. TransactionRef 只在离开 PENDING 时写入一次
type PaymentTransaction struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"-"`                                // 插入顺序，用于同日排序
	TransactionID  string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_id"`      // 交易号（全局唯一）
	RequestID      *string         `gorm:"type:varchar(64);uniqueIndex" json:"request_id,omitempty"`         // 幂等ID，可选
	EnrollmentID   int64           `gorm:"index;not null" json:"enrollment_id"`                              // 关联注册
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`                        // 金额（正数）
	Currency       string          `gorm:"type:varchar(8);not null" json:"currency"`                         // 币种
	PaymentMethod  string          `gorm:"type:varchar(64);not null" json:"payment_method"`                  // 支付方式
	TransactionRef *string         `gorm:"type:varchar(128)" json:"transaction_ref"`                         // 网关流水号
	Status         PaymentStatus   `gorm:"column:status_code;type:varchar(20);index;not null" json:"status"` // 交易状态
	Timestamp      *time.Time      `gorm:"column:transaction_timestamp" json:"timestamp"`                    // 创建时间
	Description    string          `gorm:"type:varchar(256)" json:"description"`                             // 备注
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}

// Date 交易日期（UTC 日历日），无时间戳时返回空串
func (t *PaymentTransaction) Date() string {
	if t.Timestamp == nil || t.Timestamp.IsZero() {
		return ""
	}
	return t.Timestamp.UTC().Format("2006-01-02")
}

// Reference 网关流水号，未回调前为空
func (t *PaymentTransaction) Reference() string {
	if t.TransactionRef == nil {
		return ""
	}
	return *t.TransactionRef
}
