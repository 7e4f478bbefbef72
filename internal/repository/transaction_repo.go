package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"feeledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound   = errors.New("交易不存在")
	ErrTransactionNotPending = errors.New("交易已处于终态")
	ErrReferenceAlreadySet   = errors.New("网关流水号已写入")
	ErrDuplicateTransaction  = errors.New("交易号重复")
)

type TransactionRepository struct {
	db         *gorm.DB
	outboxRepo *OutboxRepository
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{
		db:         db,
		outboxRepo: NewOutboxRepository(db),
	}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.PaymentTransaction) error {
	err := r.db.WithContext(ctx).Create(txn).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateTransaction
	}
	return err
}

func (r *TransactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*model.PaymentTransaction, error) {
	return r.getByTransactionID(ctx, r.db, transactionID)
}

func (r *TransactionRepository) getByTransactionID(ctx context.Context, tx *gorm.DB, transactionID string) (*model.PaymentTransaction, error) {
	var txn model.PaymentTransaction
	err := tx.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// GetByRequestID 未找到时返回 nil, nil
func (r *TransactionRepository) GetByRequestID(ctx context.Context, requestID string) (*model.PaymentTransaction, error) {
	var txn model.PaymentTransaction
	err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// UpdateStatusIfPending 条件更新：只有 status=PENDING 且流水号为空的记录会被改动
//
// 【关键点】单条 UPDATE ... WHERE status_code = 'PENDING' 是原子的，
// 两个并发回调只会有一个 RowsAffected=1，另一个拿到 ErrTransactionNotPending
func (r *TransactionRepository) UpdateStatusIfPending(ctx context.Context, transactionID string, status model.PaymentStatus, gatewayRef string) error {
	return r.updateStatusIfPending(ctx, r.db, transactionID, status, gatewayRef)
}

// UpdateStatusIfPendingWithEvent 状态变更与 outbox 消息在同一个事务里提交，
// 任一步失败整体回滚，不会出现状态已变而事件丢失
func (r *TransactionRepository) UpdateStatusIfPendingWithEvent(ctx context.Context, transactionID string, status model.PaymentStatus, gatewayRef string, event *model.OutboxMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.updateStatusIfPending(ctx, tx, transactionID, status, gatewayRef); err != nil {
			return err
		}
		if err := r.outboxRepo.Create(ctx, tx, event); err != nil {
			return fmt.Errorf("写入消息失败: %w", err)
		}
		return nil
	})
}

func (r *TransactionRepository) updateStatusIfPending(ctx context.Context, tx *gorm.DB, transactionID string, status model.PaymentStatus, gatewayRef string) error {
	if !model.CanTransitionTo(model.PaymentStatusPending, status) {
		return model.ErrInvalidStatus
	}

	result := tx.WithContext(ctx).
		Model(&model.PaymentTransaction{}).
		Where("transaction_id = ? AND status_code = ? AND transaction_ref IS NULL", transactionID, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status_code":     status,
			"transaction_ref": gatewayRef,
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// 在同一连接上重读，sqlite 只有一个连接
		current, err := r.getByTransactionID(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if current.Status != model.PaymentStatusPending {
			return ErrTransactionNotPending
		}
		return ErrReferenceAlreadySet
	}

	return nil
}

// ListByEnrollmentID 按插入顺序返回
func (r *TransactionRepository) ListByEnrollmentID(ctx context.Context, enrollmentID int64) ([]*model.PaymentTransaction, error) {
	var transactions []*model.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("enrollment_id = ?", enrollmentID).
		Order("id ASC").
		Find(&transactions).Error
	return transactions, err
}

// ListStalePending 创建时间早于 before 仍未回调的交易
func (r *TransactionRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*model.PaymentTransaction, error) {
	var transactions []*model.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("status_code = ? AND transaction_timestamp < ?", model.PaymentStatusPending, before).
		Order("transaction_timestamp ASC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}
