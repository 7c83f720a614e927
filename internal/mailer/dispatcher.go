package mailer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var ErrQueueFull = errors.New("mail queue is full")

type Message struct {
	To      string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	MaxAttempts int
}

type Job struct {
	Message Message
	Attempt int
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("mail worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("mail worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

// Dispatcher delivers mail off the request path through a fixed pool of
// workers. A failed delivery is retried up to MaxAttempts and then dropped.
type Dispatcher struct {
	sender Sender
	cfg    Config
	logger *slog.Logger

	jobQueue   chan Job
	workerPool chan chan Job
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
	stopOnce   sync.Once

	// pending counts jobs queued or being sent.
	pending atomic.Int64
}

func NewDispatcher(cfg Config, sender Sender, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sender:     sender,
		cfg:        cfg,
		logger:     logger,
		jobQueue:   make(chan Job, cfg.QueueSize),
		workerPool: make(chan chan Job, cfg.Workers),
		ctx:        ctx,
		cancel:     cancel,
	}
	d.start()
	return d
}

func (d *Dispatcher) start() {
	d.once.Do(func() {
		for i := 0; i < d.cfg.Workers; i++ {
			NewWorker(i, d.workerPool, d.logger).Start(d.ctx, &d.wg, d.process)
		}

		d.wg.Add(1)
		go d.dispatch()

		d.logger.Info("mail dispatcher started",
			"workers", d.cfg.Workers,
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
					return
				}
			case <-d.ctx.Done():
				return
			}
		case <-d.ctx.Done():
			d.logger.Info("mail dispatcher shutting down")
			return
		}
	}
}

// Enqueue never blocks; a full queue is reported to the caller.
func (d *Dispatcher) Enqueue(msg Message) error {
	return d.enqueue(Job{Message: msg, Attempt: 1})
}

func (d *Dispatcher) enqueue(job Job) error {
	if d.ctx.Err() != nil {
		return context.Canceled
	}
	d.pending.Add(1)
	select {
	case d.jobQueue <- job:
		return nil
	default:
		d.pending.Add(-1)
		return ErrQueueFull
	}
}

func (d *Dispatcher) process(job Job) {
	defer d.pending.Add(-1)

	ctx, cancel := context.WithTimeout(d.ctx, d.cfg.SendTimeout)
	defer cancel()

	err := d.sender.Send(ctx, job.Message)
	if err == nil {
		d.logger.Info("mail delivered", "to", job.Message.To, "subject", job.Message.Subject, "attempt", job.Attempt)
		return
	}

	if job.Attempt >= d.cfg.MaxAttempts {
		d.logger.Error("mail delivery failed, giving up",
			"to", job.Message.To,
			"attempts", job.Attempt,
			"error", err)
		return
	}

	d.logger.Warn("mail delivery failed, retrying", "to", job.Message.To, "attempt", job.Attempt, "error", err)
	job.Attempt++
	if err := d.enqueue(job); err != nil {
		d.logger.Error("mail retry dropped", "to", job.Message.To, "error", err)
	}
}

// Drain waits until every queued message has been sent or given up on.
func (d *Dispatcher) Drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for d.pending.Load() > 0 {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (d *Dispatcher) Shutdown() {
	d.stopOnce.Do(func() {
		d.logger.Info("shutting down mail dispatcher")
		d.cancel()
		d.wg.Wait()
		d.logger.Info("mail dispatcher shutdown complete")
	})
}
