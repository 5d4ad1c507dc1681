package notify

import (
	"context"
	"fmt"
	"time"

	"phonehub/internal/pkg/config"
	"phonehub/internal/pkg/worker"
	"phonehub/pkg/logger"
	"phonehub/pkg/metrics"

	"go.uber.org/zap"
)

// Dispatcher 轮询 outbox 并交给 worker pool 投递，投递结果只影响 outbox 行本身
type Dispatcher struct {
	store   Store
	senders map[Channel]Sender
	cfg     config.OutboxConfig
	metrics *metrics.MetricsCollector
	pool    *worker.WorkerPool[Message]
	now     func() time.Time
}

func NewDispatcher(store Store, cfg config.OutboxConfig, collector *metrics.MetricsCollector) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 30 * time.Second
	}
	d := &Dispatcher{
		store:   store,
		senders: make(map[Channel]Sender),
		cfg:     cfg,
		metrics: collector,
		now:     time.Now,
	}
	d.pool = worker.NewWorkerPool[Message]("outbox", cfg.Workers, cfg.BatchSize, d.deliver)
	return d
}

// Register 为渠道挂载发送器；未挂载的渠道消息会被标记为 dead
func (d *Dispatcher) Register(channel Channel, sender Sender) {
	d.senders[channel] = sender
}

// lease 认领后的租约，覆盖一整批投递的最长耗时
func (d *Dispatcher) lease() time.Duration {
	return 2 * time.Minute
}

// Run 阻塞直到 ctx 结束，返回前等待已认领的消息处理完
func (d *Dispatcher) Run(ctx context.Context) {
	// worker 使用独立 ctx，关闭时让在途投递正常收尾
	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	d.pool.Start(workCtx)
	defer d.pool.Stop()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	logger.Log.Info("outbox dispatcher started",
		zap.Int("batch_size", d.cfg.BatchSize),
		zap.Duration("poll_interval", d.cfg.PollInterval),
	)
	for {
		d.poll(ctx)
		select {
		case <-ctx.Done():
			logger.Log.Info("outbox dispatcher stopping")
			return
		case <-ticker.C:
		}
	}
}

// poll 认领一批并投递到 worker pool，返回认领数量
func (d *Dispatcher) poll(ctx context.Context) int {
	msgs, err := d.store.Claim(ctx, d.cfg.BatchSize, d.lease())
	if err != nil {
		if ctx.Err() == nil {
			logger.Log.Error("outbox claim failed", zap.Error(err))
		}
		return 0
	}
	if d.metrics != nil {
		d.metrics.OutboxClaimed(len(msgs))
	}
	for i, msg := range msgs {
		if err := d.pool.Submit(ctx, msg); err != nil {
			// 剩余消息保持 processing，租约到期后重新认领
			logger.Log.Warn("outbox submit interrupted", zap.Int("remaining", len(msgs)-i))
			return i
		}
	}
	return len(msgs)
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) error {
	log := logger.Log.With(
		zap.Int64("outbox_id", msg.ID),
		zap.String("channel", string(msg.Channel)),
		zap.Int("attempt", msg.Attempts),
	)

	sender, ok := d.senders[msg.Channel]
	if !ok {
		reason := fmt.Sprintf("no sender configured for channel %q", msg.Channel)
		d.record(msg.Channel, "dead")
		log.Warn("outbox message dropped", zap.String("reason", reason))
		return d.store.MarkDead(ctx, msg.ID, reason)
	}

	if err := sender.Send(ctx, &msg); err != nil {
		if msg.Attempts >= d.cfg.MaxAttempts {
			d.record(msg.Channel, "dead")
			log.Error("outbox message exhausted retries", zap.Error(err))
			if markErr := d.store.MarkDead(ctx, msg.ID, err.Error()); markErr != nil {
				return markErr
			}
			return err
		}
		next := d.now().Add(time.Duration(msg.Attempts) * d.cfg.RetryBackoff)
		d.record(msg.Channel, "retry")
		log.Warn("outbox delivery failed, rescheduled", zap.Time("next_attempt_at", next), zap.Error(err))
		if markErr := d.store.MarkRetry(ctx, msg.ID, next, err.Error()); markErr != nil {
			return markErr
		}
		return err
	}

	d.record(msg.Channel, "sent")
	return d.store.MarkSent(ctx, msg.ID)
}

func (d *Dispatcher) record(channel Channel, result string) {
	if d.metrics != nil {
		d.metrics.OutboxDelivery(string(channel), result)
	}
}
