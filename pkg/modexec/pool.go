package modexec

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Request describes one module invocation to be run by a Pool.
type Request struct {
	// Executable is the module path.
	Executable string

	// Argv is optional command-line arguments (dynamic inventory sources).
	Argv []string

	// Args is the argument mapping delivered through the environment.
	Args map[string]interface{}

	// Timeout bounds this invocation; zero means no per-call deadline.
	Timeout time.Duration
}

// Outcome pairs one request with its result. ID is assigned by the pool and
// is unique per invocation.
type Outcome struct {
	ID      string
	Request Request
	Result  *Result
	Err     error
}

// Pool runs module invocations concurrently with a bounded number of
// workers. Each invocation owns its subprocess; timing out or cancelling
// one does not affect the others in flight.
type Pool struct {
	channel     *Channel
	maxParallel int
	logger      zerolog.Logger
}

// NewPool creates a pool over an invocation channel.
func NewPool(channel *Channel, maxParallel int, logger zerolog.Logger) *Pool {
	if maxParallel <= 0 {
		maxParallel = 10 // Default to 10 concurrent workers
	}

	return &Pool{
		channel:     channel,
		maxParallel: maxParallel,
		logger:      logger.With().Str("component", "modexec-pool").Logger(),
	}
}

// InvokeAll runs every request and returns one outcome per request, in
// request order. Individual failures are reported in their outcome; the
// only error conditions that abort the whole batch are ctx cancellation,
// reflected in the outcomes of requests not yet started.
func (p *Pool) InvokeAll(ctx context.Context, requests []Request) []Outcome {
	outcomes := make([]Outcome, len(requests))

	workerCount := p.maxParallel
	if len(requests) < workerCount {
		workerCount = len(requests)
	}

	type job struct {
		index int
		req   Request
	}

	workQueue := make(chan job, len(requests))
	for i, req := range requests {
		workQueue <- job{index: i, req: req}
	}
	close(workQueue)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := range workQueue {
				id := uuid.New().String()

				if ctx.Err() != nil {
					outcomes[j.index] = Outcome{ID: id, Request: j.req, Err: ctx.Err()}
					continue
				}

				result, err := p.channel.InvokeArgv(ctx, j.req.Executable, j.req.Argv, j.req.Args, j.req.Timeout)
				outcomes[j.index] = Outcome{ID: id, Request: j.req, Result: result, Err: err}

				if err != nil {
					p.logger.Warn().
						Str("invocation_id", id).
						Str("executable", j.req.Executable).
						Err(err).
						Msg("Invocation failed")
				}
			}
		}()
	}

	wg.Wait()
	return outcomes
}
