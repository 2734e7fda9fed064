package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("write queue is full")
	ErrStopped   = errors.New("worker pool stopped")
)

// Job - одна операция записи. Задания с одинаковым Key выполняются
// одним и тем же воркером в порядке отправки.
type Job struct {
	Name string
	Key  string
	Run  func(ctx context.Context) error
}

type Pool struct {
	logger  *zap.Logger
	count   int
	queues  []chan Job
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	stopped bool
}

func NewPool(logger *zap.Logger, count, depth int) *Pool {
	if count < 1 {
		count = 1
	}
	if depth < 1 {
		depth = 1
	}
	queues := make([]chan Job, count)
	for i := range queues {
		queues[i] = make(chan Job, depth)
	}
	return &Pool{
		logger: logger,
		count:  count,
		queues: queues,
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	p.logger.Info("Starting worker pool", zap.Int("workers", p.count))
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop закрывает очереди и ждет, пока воркеры выполнят уже принятые задания
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	if !started {
		return
	}
	p.logger.Info("Stopping worker pool...")
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

// Submit не блокирует: переполненная очередь сразу возвращает ErrQueueFull
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.queues[p.shard(job.Key)] <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pool) shard(key string) int {
	if key == "" || p.count == 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.count))
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queues[id]:
			if !ok {
				return
			}
			p.process(ctx, id, job)
		}
	}
}

func (p *Pool) process(ctx context.Context, workerID int, job Job) {
	if err := job.Run(ctx); err != nil {
		p.logger.Warn("job failed",
			zap.Int("worker", workerID),
			zap.String("job", job.Name),
			zap.String("key", job.Key),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("job done",
		zap.Int("worker", workerID),
		zap.String("job", job.Name),
		zap.String("key", job.Key),
	)
}
