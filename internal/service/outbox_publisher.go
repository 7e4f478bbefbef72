package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"feeledger/internal/model"
	"feeledger/internal/repository"
)

// OutboxPublisher 把状态变更编码为 outbox 消息，由 OutboxSender 投递到 Kafka
type OutboxPublisher struct {
	outboxRepo *repository.OutboxRepository
	topic      string
	now        func() time.Time
}

func NewOutboxPublisher(outboxRepo *repository.OutboxRepository, topic string) *OutboxPublisher {
	return &OutboxPublisher{
		outboxRepo: outboxRepo,
		topic:      topic,
		now:        time.Now,
	}
}

type paymentStatusEvent struct {
	TransactionID    string `json:"transaction_id"`
	EnrollmentID     int64  `json:"enrollment_id"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	GatewayReference string `json:"gateway_reference"`
	OccurredAt       string `json:"occurred_at"`
}

// EncodeStatusChanged 生成 payment.status_changed 消息，由调用方决定在哪个事务里写入
func (p *OutboxPublisher) EncodeStatusChanged(txn *model.PaymentTransaction) (*model.OutboxMessage, error) {
	payload, err := json.Marshal(paymentStatusEvent{
		TransactionID:    txn.TransactionID,
		EnrollmentID:     txn.EnrollmentID,
		Amount:           txn.Amount.StringFixed(2),
		Currency:         txn.Currency,
		Status:           txn.Status.String(),
		GatewayReference: txn.Reference(),
		OccurredAt:       p.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("序列化事件失败: %w", err)
	}

	return &model.OutboxMessage{
		EventType:    model.EventPaymentStatusChanged,
		MessageKey:   txn.TransactionID,
		EnrollmentID: txn.EnrollmentID,
		Topic:        p.topic,
		Payload:      string(payload),
		Status:       model.OutboxStatusPending,
	}, nil
}

// PaymentStatusChanged 单独写一条 outbox 消息，不与状态变更同事务
func (p *OutboxPublisher) PaymentStatusChanged(ctx context.Context, txn *model.PaymentTransaction) error {
	msg, err := p.EncodeStatusChanged(txn)
	if err != nil {
		return err
	}
	if err := p.outboxRepo.Create(ctx, nil, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
