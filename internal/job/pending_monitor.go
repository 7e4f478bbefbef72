package job

import (
	"context"
	"log"
	"time"

	"feeledger/internal/config"
	"feeledger/internal/model"
	"feeledger/internal/repository"
)

// PendingMonitor 定期扫描长时间未收到网关回调的 PENDING 交易并告警。
// 只读：PENDING 只能由网关回调推进，这里不改状态。
type PendingMonitor struct {
	txnRepo   *repository.TransactionRepository
	threshold time.Duration
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewPendingMonitor(txnRepo *repository.TransactionRepository, cfg *config.Config) *PendingMonitor {
	return &PendingMonitor{
		txnRepo:   txnRepo,
		threshold: time.Duration(cfg.Business.PendingAlertMinutes) * time.Minute,
		stopCh:    make(chan struct{}),
		interval:  time.Minute,
		batchSize: 100,
		now:       time.Now,
	}
}

func (m *PendingMonitor) Start(ctx context.Context) {
	log.Println("[PendingMonitor] 待回调交易巡检任务启动")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[PendingMonitor] 收到停止信号，任务退出")
			return
		case <-m.stopCh:
			log.Println("[PendingMonitor] 任务停止")
			return
		case <-ticker.C:
			m.ScanOnce(ctx)
		}
	}
}

func (m *PendingMonitor) Stop() {
	close(m.stopCh)
}

// ScanOnce 返回本轮发现的超时 PENDING 交易
func (m *PendingMonitor) ScanOnce(ctx context.Context) []*model.PaymentTransaction {
	before := m.now().UTC().Add(-m.threshold)
	stale, err := m.txnRepo.ListStalePending(ctx, before, m.batchSize)
	if err != nil {
		log.Printf("[PendingMonitor] 查询待回调交易失败: %v", err)
		return nil
	}

	if len(stale) == 0 {
		return stale
	}

	log.Printf("[PendingMonitor] 发现 %d 笔超过 %s 未回调的交易", len(stale), m.threshold)
	for _, txn := range stale {
		log.Printf("[PendingMonitor] 交易未回调: transaction_id=%s, enrollment_id=%d, amount=%s, created=%s",
			txn.TransactionID, txn.EnrollmentID, txn.Amount.StringFixed(2), txn.Date())
	}
	return stale
}
