// Package ledger applies vote ledger writes off the request path.
package ledger

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/example/board-platform/services/board/internal/domain"
)

var jobsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "board_ledger_jobs_total",
		Help: "Vote ledger jobs by outcome",
	},
	[]string{"result"},
)

// Recorder is the write side of the vote ledger.
type Recorder interface {
	RecordVote(ctx context.Context, user, content string, next, previous domain.Vote) error
}

// Job is one pending ledger write.
type Job struct {
	User     string
	Content  string
	Next     domain.Vote
	Previous domain.Vote
}

type Options struct {
	QueueSize    int
	WriteTimeout time.Duration
	DrainTimeout time.Duration
	Logger       *zap.Logger
}

// Writer queues ledger jobs and applies them in order on a single worker.
type Writer struct {
	rec  Recorder
	jobs chan Job
	opts Options
	log  *zap.Logger
}

func NewWriter(rec Recorder, opts Options) *Writer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Writer{
		rec:  rec,
		jobs: make(chan Job, opts.QueueSize),
		opts: opts,
		log:  opts.Logger,
	}
}

// Enqueue hands job to the worker without blocking. A full queue drops
// the job and logs it.
func (w *Writer) Enqueue(job Job) {
	select {
	case w.jobs <- job:
		jobsTotal.WithLabelValues("enqueued").Inc()
	default:
		jobsTotal.WithLabelValues("dropped").Inc()
		w.log.Warn("ledger queue full, vote dropped",
			zap.String("user", job.User),
			zap.String("content", job.Content),
			zap.Int8("vote", int8(job.Next)),
		)
	}
}

// Run processes jobs until ctx is cancelled, then drains what is already
// queued within the drain timeout.
func (w *Writer) Run(ctx context.Context) error {
	w.log.Info("ledger writer started", zap.Int("queue_size", cap(w.jobs)))
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case job := <-w.jobs:
			w.write(context.Background(), job)
		}
	}
}

func (w *Writer) drain() {
	deadline, cancel := context.WithTimeout(context.Background(), w.opts.DrainTimeout)
	defer cancel()
	n := 0
	for {
		select {
		case job := <-w.jobs:
			w.write(deadline, job)
			n++
		default:
			w.log.Info("ledger writer stopped", zap.Int("drained", n))
			return
		}
		if deadline.Err() != nil {
			w.log.Warn("ledger drain timed out", zap.Int("drained", n), zap.Int("abandoned", len(w.jobs)))
			return
		}
	}
}

func (w *Writer) write(parent context.Context, job Job) {
	ctx, cancel := context.WithTimeout(parent, w.opts.WriteTimeout)
	defer cancel()
	if err := w.rec.RecordVote(ctx, job.User, job.Content, job.Next, job.Previous); err != nil {
		jobsTotal.WithLabelValues("failed").Inc()
		w.log.Warn("ledger write failed",
			zap.String("user", job.User),
			zap.String("content", job.Content),
			zap.Int8("vote", int8(job.Next)),
			zap.Error(err),
		)
		return
	}
	jobsTotal.WithLabelValues("written").Inc()
}

// Pending reports queued jobs not yet written.
func (w *Writer) Pending() int { return len(w.jobs) }
