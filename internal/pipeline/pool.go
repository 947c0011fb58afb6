package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/Brownie44l1/node-detect-api/internal/model"
)

var (
	ErrPoolClosed = errors.New("worker pool closed")
	ErrJobPanic   = errors.New("prediction panicked")
)

// Result is the outcome of one pooled prediction.
type Result struct {
	Nodes []model.PredictedNode
	Err   error
}

// Future is a handle to a prediction running on the pool.
type Future struct {
	ID   string
	done chan struct{}
	res  Result
}

// Wait blocks until the prediction finishes or ctx is done. Cancelling ctx
// only stops the wait; the prediction itself runs to completion.
func (f *Future) Wait(ctx context.Context) ([]model.PredictedNode, error) {
	select {
	case <-f.done:
		return f.res.Nodes, f.res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

type job struct {
	fut *Future
	run func() ([]model.PredictedNode, error)
}

// Pool runs predictions on a fixed set of goroutines. Inference itself is
// serialized by the session, but decoding and preprocessing overlap.
type Pool struct {
	pred *Predictor
	jobs chan job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines running pred, with room for queue pending
// jobs.
func NewPool(pred *Predictor, workers, queue int) *Pool {
	workers = max(workers, 1)
	queue = max(queue, 0)

	p := &Pool{pred: pred, jobs: make(chan job, queue)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		nodes, err := runJob(j)
		if err != nil {
			log.WithField("job", j.fut.ID).WithError(err).Warn("Prediction failed")
		}
		j.fut.res = Result{Nodes: nodes, Err: err}
		close(j.fut.done)
	}
}

// runJob turns a panicking job into an ErrJobPanic result so the worker and
// the waiters survive it.
func runJob(j job) (nodes []model.PredictedNode, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("job", j.fut.ID).Errorf("Prediction panicked: %v\n%s", r, debug.Stack())
			nodes, err = nil, fmt.Errorf("%w: %v", ErrJobPanic, r)
		}
	}()
	return j.run()
}

// Submit queues a prediction. It blocks while the queue is full, until ctx is
// done.
func (p *Pool) Submit(ctx context.Context, req Request) (*Future, error) {
	return p.SubmitFunc(ctx, func() ([]model.PredictedNode, error) {
		return p.pred.Predict(req)
	})
}

// SubmitFunc queues an arbitrary prediction closure, e.g. one built around an
// already decoded image.
func (p *Pool) SubmitFunc(ctx context.Context, run func() ([]model.PredictedNode, error)) (*Future, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	fut := &Future{ID: id.String(), done: make(chan struct{})}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	select {
	case p.jobs <- job{fut: fut, run: run}:
		return fut, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
