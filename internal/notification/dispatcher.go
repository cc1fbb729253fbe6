package notification

import (
	"context"
	"log/slog"
	"sync"

	"github.com/frahmantamala/leave-management/internal/core/metrics"
)

// Job is one unit of background delivery.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

type worker struct {
	id         int
	workerPool chan chan Job
	jobChannel chan Job
	logger     *slog.Logger
}

func newWorker(id int, workerPool chan chan Job, logger *slog.Logger) *worker {
	return &worker{
		id:         id,
		workerPool: workerPool,
		jobChannel: make(chan Job),
		logger:     logger,
	}
}

func (w *worker) start(ctx context.Context, wg *sync.WaitGroup, process func(context.Context, Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.workerPool <- w.jobChannel:
			case <-ctx.Done():
				w.logger.Debug("notification worker shutting down", "worker_id", w.id)
				return
			}

			select {
			case job := <-w.jobChannel:
				w.logger.Debug("worker processing job", "worker_id", w.id, "job", job.Name)
				process(ctx, job)
			case <-ctx.Done():
				w.logger.Debug("notification worker shutting down", "worker_id", w.id)
				return
			}
		}
	}()
}

type DispatcherConfig struct {
	MaxWorkers   int
	JobQueueSize int
}

// Dispatcher runs notification jobs on a fixed pool of workers fed from a
// bounded queue. Enqueue never blocks; a full queue drops the job.
type Dispatcher struct {
	logger *slog.Logger

	jobQueue   chan Job
	workerPool chan chan Job
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	pending    sync.WaitGroup
	once       sync.Once
	stopOnce   sync.Once

	// mu orders Enqueue against Shutdown so the drain sees every accepted job.
	mu      sync.Mutex
	stopped bool
}

func NewDispatcher(cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	queueSize := cfg.JobQueueSize
	if queueSize <= 0 {
		queueSize = 100
	}

	d := &Dispatcher{
		logger:     logger,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan Job, queueSize),
		workerPool: make(chan chan Job, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}
	d.start()
	return d
}

func (d *Dispatcher) start() {
	d.once.Do(func() {
		for i := 0; i < d.maxWorkers; i++ {
			newWorker(i, d.workerPool, d.logger).start(d.ctx, &d.wg, d.process)
		}

		d.wg.Add(1)
		go d.dispatch()

		d.logger.Info("notification dispatcher started",
			"max_workers", d.maxWorkers,
			"queue_size", cap(d.jobQueue))
	})
}

func (d *Dispatcher) dispatch() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- job:
				case <-d.ctx.Done():
					d.pending.Done()
					return
				}
			case <-d.ctx.Done():
				d.pending.Done()
				return
			}
		case <-d.ctx.Done():
			d.logger.Info("notification dispatcher shutting down")
			return
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, job Job) {
	defer d.pending.Done()
	if err := job.Run(ctx); err != nil {
		d.logger.Warn("notification job failed", "job", job.Name, "error", err)
	}
}

// Enqueue hands job to the pool. It reports false when the queue is full or
// the dispatcher is stopped.
func (d *Dispatcher) Enqueue(job Job) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		d.logger.Warn("notification dispatcher stopped, dropping job", "job", job.Name)
		metrics.ObserveDroppedJob()
		return false
	}

	d.pending.Add(1)
	select {
	case d.jobQueue <- job:
		d.logger.Debug("notification job queued", "job", job.Name, "queue_length", len(d.jobQueue))
		return true
	default:
		d.pending.Done()
		d.logger.Warn("notification queue full, dropping job",
			"job", job.Name,
			"queue_capacity", cap(d.jobQueue))
		metrics.ObserveDroppedJob()
		return false
	}
}

// Wait blocks until every accepted job has run.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// Shutdown stops the workers. Jobs still queued are discarded.
func (d *Dispatcher) Shutdown() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()

		d.logger.Info("shutting down notification dispatcher", "queued", len(d.jobQueue))
		d.cancel()
		d.wg.Wait()
		for {
			select {
			case <-d.jobQueue:
				d.pending.Done()
			default:
				d.logger.Info("notification dispatcher shutdown complete")
				return
			}
		}
	})
}
