// Package memory 提供内存版的费用评估与交易存储，仅用于测试
package memory

import (
	"context"
	"sync"

	"feeledger/internal/model"
	"feeledger/internal/repository"
)

type Store struct {
	mu sync.RWMutex

	assessments map[int64]*model.FeeAssessment

	transactions map[string]*model.PaymentTransaction
	byEnrollment map[int64][]string // 按插入顺序
	byRequest    map[string]string
	seq          int64
}

func New() *Store {
	return &Store{
		assessments:  make(map[int64]*model.FeeAssessment),
		transactions: make(map[string]*model.PaymentTransaction),
		byEnrollment: make(map[int64][]string),
		byRequest:    make(map[string]string),
	}
}

func (s *Store) PutAssessment(a *model.FeeAssessment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.assessments[a.EnrollmentID] = &cp
}

func (s *Store) GetByEnrollmentID(_ context.Context, enrollmentID int64) (*model.FeeAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assessments[enrollmentID]
	if !ok {
		return nil, repository.ErrAssessmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) Create(_ context.Context, txn *model.PaymentTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[txn.TransactionID]; exists {
		return repository.ErrDuplicateTransaction
	}
	if txn.RequestID != nil {
		if _, exists := s.byRequest[*txn.RequestID]; exists {
			return repository.ErrDuplicateTransaction
		}
		s.byRequest[*txn.RequestID] = txn.TransactionID
	}

	s.seq++
	txn.ID = s.seq
	s.transactions[txn.TransactionID] = cloneTxn(txn)
	s.byEnrollment[txn.EnrollmentID] = append(s.byEnrollment[txn.EnrollmentID], txn.TransactionID)
	return nil
}

func (s *Store) GetByTransactionID(_ context.Context, transactionID string) (*model.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, ok := s.transactions[transactionID]
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}
	return cloneTxn(txn), nil
}

func (s *Store) GetByRequestID(_ context.Context, requestID string) (*model.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byRequest[requestID]
	if !ok {
		return nil, nil
	}
	return cloneTxn(s.transactions[id]), nil
}

func (s *Store) UpdateStatusIfPending(_ context.Context, transactionID string, status model.PaymentStatus, gatewayRef string) error {
	if !model.CanTransitionTo(model.PaymentStatusPending, status) {
		return model.ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.transactions[transactionID]
	if !ok {
		return repository.ErrTransactionNotFound
	}
	if txn.Status != model.PaymentStatusPending {
		return repository.ErrTransactionNotPending
	}
	if txn.TransactionRef != nil {
		return repository.ErrReferenceAlreadySet
	}

	ref := gatewayRef
	txn.Status = status
	txn.TransactionRef = &ref
	return nil
}

func (s *Store) ListByEnrollmentID(_ context.Context, enrollmentID int64) ([]*model.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byEnrollment[enrollmentID]
	result := make([]*model.PaymentTransaction, 0, len(ids))
	for _, id := range ids {
		result = append(result, cloneTxn(s.transactions[id]))
	}
	return result, nil
}

func cloneTxn(txn *model.PaymentTransaction) *model.PaymentTransaction {
	cp := *txn
	if txn.TransactionRef != nil {
		ref := *txn.TransactionRef
		cp.TransactionRef = &ref
	}
	if txn.RequestID != nil {
		req := *txn.RequestID
		cp.RequestID = &req
	}
	if txn.Timestamp != nil {
		ts := *txn.Timestamp
		cp.Timestamp = &ts
	}
	return &cp
}
