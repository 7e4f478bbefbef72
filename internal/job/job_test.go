package job

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"feeledger/internal/config"
	"feeledger/internal/infrastructure/database"
	"feeledger/internal/infrastructure/mq"
	"feeledger/internal/model"
	"feeledger/internal/repository"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "job.db"),
		LogLevel:   "silent",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func testConfig(maxRetry int) *config.Config {
	cfg := &config.Config{}
	cfg.Business.MaxRetryCount = maxRetry
	cfg.Business.PendingAlertMinutes = 30
	return cfg
}

func enqueue(t *testing.T, repo *repository.OutboxRepository, key string) *model.OutboxMessage {
	t.Helper()
	msg := &model.OutboxMessage{
		EventType:    model.EventPaymentStatusChanged,
		MessageKey:   key,
		EnrollmentID: 1001,
		Topic:        "payment_result",
		Payload:      `{"transaction_id":"` + key + `"}`,
		Status:       model.OutboxStatusPending,
	}
	if err := repo.Create(context.Background(), nil, msg); err != nil {
		t.Fatal(err)
	}
	return msg
}

func statusOf(t *testing.T, repo *repository.OutboxRepository, key string) (string, int) {
	t.Helper()
	msgs, err := repo.ListByMessageKey(context.Background(), key)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("list %s: %v, %v", key, msgs, err)
	}
	return msgs[0].Status, msgs[0].RetryCount
}

func TestOutboxSenderDelivers(t *testing.T) {
	repo := repository.NewOutboxRepository(openTestDB(t))
	enqueue(t, repo, "TXN-1")
	enqueue(t, repo, "TXN-2")

	sp := mocks.NewSyncProducer(t, mq.ProducerConfig())
	sp.ExpectSendMessageAndSucceed()
	sp.ExpectSendMessageAndSucceed()
	producer := mq.NewProducer(sp)
	defer producer.Close()

	sender := NewOutboxSender(repo, producer, testConfig(3))
	if n := sender.ProcessOnce(context.Background()); n != 2 {
		t.Fatalf("sent %d, want 2", n)
	}

	for _, key := range []string{"TXN-1", "TXN-2"} {
		if status, _ := statusOf(t, repo, key); status != model.OutboxStatusSent {
			t.Errorf("%s status = %s", key, status)
		}
	}
	// 已发送的消息不会再被取出
	if n := sender.ProcessOnce(context.Background()); n != 0 {
		t.Fatalf("resent %d messages", n)
	}
}

func TestOutboxSenderRetriesThenFails(t *testing.T) {
	repo := repository.NewOutboxRepository(openTestDB(t))
	enqueue(t, repo, "TXN-1")

	sp := mocks.NewSyncProducer(t, mq.ProducerConfig())
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer := mq.NewProducer(sp)
	defer producer.Close()

	sender := NewOutboxSender(repo, producer, testConfig(2))

	sender.ProcessOnce(context.Background())
	if status, retry := statusOf(t, repo, "TXN-1"); status != model.OutboxStatusPending || retry != 1 {
		t.Fatalf("after first failure: status=%s retry=%d", status, retry)
	}

	sender.ProcessOnce(context.Background())
	if status, retry := statusOf(t, repo, "TXN-1"); status != model.OutboxStatusFailed || retry != 2 {
		t.Fatalf("after second failure: status=%s retry=%d", status, retry)
	}

	// 标记失败后不再投递，mock 没有多余的期望
	sender.ProcessOnce(context.Background())
}

func TestPendingMonitorScanOnce(t *testing.T) {
	repo := repository.NewTransactionRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

	mk := func(id string, status model.PaymentStatus, ts time.Time) {
		t.Helper()
		txn := &model.PaymentTransaction{
			TransactionID: id,
			EnrollmentID:  1001,
			Amount:        decimal.NewFromInt(100),
			Currency:      "PHP",
			PaymentMethod: "GCash",
			Status:        status,
			Timestamp:     &ts,
		}
		if err := repo.Create(ctx, txn); err != nil {
			t.Fatal(err)
		}
	}
	mk("TXN-STALE", model.PaymentStatusPending, now.Add(-2*time.Hour))
	mk("TXN-FRESH", model.PaymentStatusPending, now.Add(-5*time.Minute))
	mk("TXN-DONE", model.PaymentStatusCompleted, now.Add(-3*time.Hour))

	monitor := NewPendingMonitor(repo, testConfig(3))
	monitor.now = func() time.Time { return now }

	stale := monitor.ScanOnce(ctx)
	if len(stale) != 1 || stale[0].TransactionID != "TXN-STALE" {
		t.Fatalf("stale = %v", stale)
	}

	// 巡检不修改状态
	got, err := repo.GetByTransactionID(ctx, "TXN-STALE")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.PaymentStatusPending {
		t.Errorf("status changed to %s", got.Status)
	}
}

func TestJobsStopOnContextCancel(t *testing.T) {
	db := openTestDB(t)
	sp := mocks.NewSyncProducer(t, mq.ProducerConfig())
	producer := mq.NewProducer(sp)
	defer producer.Close()

	sender := NewOutboxSender(repository.NewOutboxRepository(db), producer, testConfig(3))
	monitor := NewPendingMonitor(repository.NewTransactionRepository(db), testConfig(3))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{}, 2)
	go func() { sender.Start(ctx); done <- struct{}{} }()
	go func() { monitor.Start(ctx); done <- struct{}{} }()
	cancel()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job did not stop")
		}
	}
}

func TestJobsStopOnStop(t *testing.T) {
	db := openTestDB(t)
	sp := mocks.NewSyncProducer(t, mq.ProducerConfig())
	producer := mq.NewProducer(sp)
	defer producer.Close()

	sender := NewOutboxSender(repository.NewOutboxRepository(db), producer, testConfig(3))
	monitor := NewPendingMonitor(repository.NewTransactionRepository(db), testConfig(3))

	done := make(chan struct{}, 2)
	go func() { sender.Start(context.Background()); done <- struct{}{} }()
	go func() { monitor.Start(context.Background()); done <- struct{}{} }()
	sender.Stop()
	monitor.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job did not stop")
		}
	}
}
