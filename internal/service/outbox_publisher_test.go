package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"feeledger/internal/config"
	"feeledger/internal/infrastructure/database"
	"feeledger/internal/model"
	"feeledger/internal/repository"

	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "outbox.db"),
		LogLevel:   "silent",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func TestOutboxPublisherWritesPendingMessage(t *testing.T) {
	db := openSQLite(t)

	outbox := repository.NewOutboxRepository(db)
	pub := NewOutboxPublisher(outbox, "payment_result")
	pub.now = func() time.Time { return time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC) }

	ref := "GW-9"
	txn := &model.PaymentTransaction{
		TransactionID:  "TXN-9",
		EnrollmentID:   1001,
		Amount:         dec("1234.5"),
		Currency:       "PHP",
		Status:         model.PaymentStatusCompleted,
		TransactionRef: &ref,
	}
	if err := pub.PaymentStatusChanged(context.Background(), txn); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msgs, err := outbox.ListByMessageKey(context.Background(), "TXN-9")
	if err != nil || len(msgs) != 1 {
		t.Fatalf("messages: %v, %v", msgs, err)
	}
	msg := msgs[0]
	if msg.Topic != "payment_result" || msg.Status != model.OutboxStatusPending || msg.EventType != model.EventPaymentStatusChanged {
		t.Errorf("message: %+v", msg)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["amount"] != "1234.50" || payload["status"] != "COMPLETED" || payload["gateway_reference"] != "GW-9" {
		t.Errorf("payload: %v", payload)
	}
	if payload["occurred_at"] != "2024-09-01T12:00:00Z" {
		t.Errorf("occurred_at: %v", payload["occurred_at"])
	}
}

func TestApplyGatewayCallbackCommitsEventWithStatus(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	if err := database.SeedDemoData(ctx, db); err != nil {
		t.Fatal(err)
	}

	txnRepo := repository.NewTransactionRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	ids := []string{"TXN-A", "TXN-B"}
	ledger := NewLedgerService(repository.NewAssessmentRepository(db), txnRepo, testConfig(),
		WithOutbox(txnRepo, NewOutboxPublisher(outboxRepo, "payment_result")),
		WithIDGenerator(func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		}))

	first, err := ledger.InitiatePayment(ctx, &InitiatePaymentRequest{EnrollmentID: 1001, Amount: dec("2000"), PaymentMethod: "GCash"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := ledger.InitiatePayment(ctx, &InitiatePaymentRequest{EnrollmentID: 1001, Amount: dec("500"), PaymentMethod: "GCash"})
	if err != nil {
		t.Fatal(err)
	}

	res, err := ledger.ApplyGatewayCallback(ctx, &GatewayCallbackRequest{
		TransactionID: first.Transaction.TransactionID, GatewayReference: "GW-1", StatusCode: "COMPLETED",
	})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if !res.Balance.RemainingBalance.Equal(dec("3000")) {
		t.Errorf("remaining: %s", res.Balance.RemainingBalance)
	}
	msgs, err := outboxRepo.ListByMessageKey(ctx, first.Transaction.TransactionID)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("outbox rows: %v, %v", msgs, err)
	}

	// 重复回调不再写事件
	if _, err := ledger.ApplyGatewayCallback(ctx, &GatewayCallbackRequest{
		TransactionID: first.Transaction.TransactionID, GatewayReference: "GW-1", StatusCode: "COMPLETED",
	}); !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected AlreadyFinalized, got %v", err)
	}
	if msgs, _ := outboxRepo.ListByMessageKey(ctx, first.Transaction.TransactionID); len(msgs) != 1 {
		t.Errorf("duplicate callback wrote an event, rows=%d", len(msgs))
	}

	// 事件写不进去时回调失败，交易保持 PENDING，可以重试
	if err := db.Migrator().DropTable(&model.OutboxMessage{}); err != nil {
		t.Fatal(err)
	}
	cb := &GatewayCallbackRequest{TransactionID: second.Transaction.TransactionID, GatewayReference: "GW-2", StatusCode: "FAILED"}
	if _, err := ledger.ApplyGatewayCallback(ctx, cb); err == nil || IsConflict(err) || IsValidation(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	txn, err := txnRepo.GetByTransactionID(ctx, second.Transaction.TransactionID)
	if err != nil {
		t.Fatal(err)
	}
	if txn.Status != model.PaymentStatusPending || txn.TransactionRef != nil {
		t.Fatalf("status committed without event: %+v", txn)
	}

	if err := db.AutoMigrate(&model.OutboxMessage{}); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.ApplyGatewayCallback(ctx, cb); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if msgs, _ := outboxRepo.ListByMessageKey(ctx, second.Transaction.TransactionID); len(msgs) != 1 {
		t.Errorf("retry should write one event, rows=%d", len(msgs))
	}
}
