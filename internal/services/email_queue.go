package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gulfquotes/internal/metrics"
)

var (
	ErrQueueFull   = errors.New("email queue is full")
	ErrQueueClosed = errors.New("email queue is closed")
)

// EmailJob carries everything the worker needs; it never touches the database.
type EmailJob struct {
	To       string            `json:"to"`
	Name     string            `json:"name,omitempty"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// EmailQueue hands email work to a background consumer.
type EmailQueue interface {
	Enqueue(ctx context.Context, job EmailJob) error
	Close()
}

type MemoryQueueOptions struct {
	Size        int
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
}

// MemoryQueue 内存队列 + 后台 worker，发送失败按退避重试
type MemoryQueue struct {
	jobs    chan EmailJob
	mailer  Mailer
	log     logrus.FieldLogger
	metrics *metrics.Metrics
	opts    MemoryQueueOptions

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewMemoryQueue(mailer Mailer, log logrus.FieldLogger, m *metrics.Metrics, opts MemoryQueueOptions) *MemoryQueue {
	if opts.Size <= 0 {
		opts.Size = 1000 // 缓冲队列，防止阻塞
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}

	q := &MemoryQueue{
		jobs:    make(chan EmailJob, opts.Size),
		mailer:  mailer,
		log:     log,
		metrics: m,
		opts:    opts,
		stop:    make(chan struct{}),
	}
	// 启动后台 worker
	for i := 0; i < opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Enqueue never blocks: a full queue drops the job and reports ErrQueueFull.
func (q *MemoryQueue) Enqueue(_ context.Context, job EmailJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		q.setDepth()
		return nil
	default:
		q.log.WithField("to", job.To).Warn("email queue full, dropping job")
		if q.metrics != nil {
			q.metrics.EmailsFailed.Inc()
		}
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for the workers to drain what is queued.
// Pending retries get no further backoff once Close is called.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.stop)
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *MemoryQueue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.setDepth()
		q.deliver(job)
	}
}

func (q *MemoryQueue) deliver(job EmailJob) {
	entry := q.log.WithFields(logrus.Fields{"to": job.To, "template": job.Template})

	for attempt := 1; attempt <= q.opts.MaxAttempts; attempt++ {
		err := q.mailer.Send(context.Background(), job)
		if err == nil {
			if q.metrics != nil {
				q.metrics.EmailsSent.Inc()
			}
			return
		}
		if errors.Is(err, ErrMailDisabled) {
			entry.Debug("mail disabled, email skipped")
			return
		}
		entry.WithError(err).WithField("attempt", attempt).Warn("email send failed")

		if attempt == q.opts.MaxAttempts {
			break
		}
		select {
		case <-time.After(q.opts.Backoff * time.Duration(attempt)):
		case <-q.stop:
			attempt = q.opts.MaxAttempts - 1 // one last try while draining
		}
	}

	entry.Error("email dropped after retries")
	if q.metrics != nil {
		q.metrics.EmailsFailed.Inc()
	}
}

func (q *MemoryQueue) setDepth() {
	if q.metrics != nil {
		q.metrics.QueueDepth.Set(float64(len(q.jobs)))
	}
}
