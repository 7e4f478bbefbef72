package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// EventPaymentStatusChanged 交易从 PENDING 进入终态后产生的事件
const EventPaymentStatusChanged = "payment.status_changed"

// OutboxMessage 待投递到 Kafka 的事件
// 状态变更落库后写入，由 OutboxSender 异步投递
type OutboxMessage struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventType    string    `gorm:"type:varchar(64);not null" json:"event_type"`
	MessageKey   string    `gorm:"type:varchar(64);index;not null" json:"message_key"` // 交易号
	EnrollmentID int64     `gorm:"index;not null" json:"enrollment_id"`
	Topic        string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload      string    `gorm:"type:text;not null" json:"payload"`
	Status       string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount   int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
