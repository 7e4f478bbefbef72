package service

import (
	"context"

	"feeledger/internal/model"
)

// AssessmentStore 费用评估查询，记录不存在时返回 repository.ErrAssessmentNotFound
type AssessmentStore interface {
	GetByEnrollmentID(ctx context.Context, enrollmentID int64) (*model.FeeAssessment, error)
}

// TransactionStore 交易存储
//
// UpdateStatusIfPending 必须是条件写：只有当前 status=PENDING 时才生效，
// 否则返回 repository.ErrTransactionNotPending / ErrReferenceAlreadySet / ErrTransactionNotFound
type TransactionStore interface {
	Create(ctx context.Context, txn *model.PaymentTransaction) error
	GetByTransactionID(ctx context.Context, transactionID string) (*model.PaymentTransaction, error)
	GetByRequestID(ctx context.Context, requestID string) (*model.PaymentTransaction, error)
	UpdateStatusIfPending(ctx context.Context, transactionID string, status model.PaymentStatus, gatewayRef string) error
	ListByEnrollmentID(ctx context.Context, enrollmentID int64) ([]*model.PaymentTransaction, error)
}

// OutboxStore 状态变更与 outbox 消息在同一个数据库事务里提交
type OutboxStore interface {
	UpdateStatusIfPendingWithEvent(ctx context.Context, transactionID string, status model.PaymentStatus, gatewayRef string, event *model.OutboxMessage) error
}

// EventEncoder 把进入终态的交易编码为 outbox 消息
type EventEncoder interface {
	EncodeStatusChanged(txn *model.PaymentTransaction) (*model.OutboxMessage, error)
}

// EventPublisher 交易进入终态后的事件出口，在状态提交之后调用，
// 失败只记日志。需要事件与状态同时落库时用 WithOutbox
type EventPublisher interface {
	PaymentStatusChanged(ctx context.Context, txn *model.PaymentTransaction) error
}

// CallbackLocker 同一交易的回调串行化，返回的 release 必须调用
type CallbackLocker interface {
	Acquire(ctx context.Context, transactionID string) (release func(), err error)
}
