package worker

import (
	"context"
	"sync"

	"phonehub/pkg/logger"

	"go.uber.org/zap"
)

// Handler 处理单个任务；重试与失败落库由调用方负责
type Handler[T any] func(ctx context.Context, task T) error

// WorkerPool 固定数量的 goroutine 消费 TaskQueue
type WorkerPool[T any] struct {
	TaskQueue chan T
	WorkerNum int
	Name      string

	handler Handler[T]
	wg      sync.WaitGroup
	once    sync.Once
}

func NewWorkerPool[T any](name string, workerNum int, bufferSize int, handler Handler[T]) *WorkerPool[T] {
	if workerNum <= 0 {
		workerNum = 1
	}
	return &WorkerPool[T]{
		TaskQueue: make(chan T, bufferSize),
		WorkerNum: workerNum,
		Name:      name,
		handler:   handler,
	}
}

func (p *WorkerPool[T]) Start(ctx context.Context) {
	for i := 0; i < p.WorkerNum; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	logger.Log.Info("worker pool started", zap.String("pool", p.Name), zap.Int("workers", p.WorkerNum))
}

func (p *WorkerPool[T]) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for task := range p.TaskQueue {
		if err := p.handler(ctx, task); err != nil {
			logger.Log.Warn("task failed",
				zap.String("pool", p.Name),
				zap.Int("worker", id),
				zap.Error(err),
			)
		}
	}
}

// Submit 投递任务；队列满时阻塞直到有空位或 ctx 结束
func (p *WorkerPool[T]) Submit(ctx context.Context, task T) error {
	select {
	case p.TaskQueue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop 关闭队列并等待已投递任务处理完
func (p *WorkerPool[T]) Stop() {
	p.once.Do(func() { close(p.TaskQueue) })
	p.wg.Wait()
}
