package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// fifo processes incoming payloads one at a time preserving their order.
type fifo struct {
	proc Processor
}

// NewFIFO returns a StageRunner that processes incoming payloads in a first-in
// first-out fashion.
func NewFIFO(proc Processor) StageRunner {
	return fifo{proc}
}

// Run processes payloads until the input channel is closed, the context is
// cancelled or the processor returns an error.
func (r fifo) Run(ctx context.Context, params StageParams) {
	for {
		select {
		case <-ctx.Done():
			return
		case payloadIn, ok := <-params.Input():
			if !ok {
				return
			}

			payloadOut, err := r.proc.Process(ctx, payloadIn)
			if err != nil {
				mayEmitError(
					fmt.Errorf("pipeline stage %d: %w", params.StageIndex(), err),
					params.Error(),
				)

				return
			}

			if payloadOut == nil {
				payloadIn.MarkAsProcessed()

				continue
			}

			select {
			case <-ctx.Done():
				return
			case params.Output() <- payloadOut:
			}
		}
	}
}

// fixedWorkerPool distributes incoming payloads among a constant number of
// fifo workers.
type fixedWorkerPool struct {
	fifos []StageRunner
}

// NewFixedWorkerPool returns a StageRunner that uses numOfWorkers fifo
// runners sharing the same input and output channels. Output order is not
// preserved.
func NewFixedWorkerPool(proc Processor, numOfWorkers int) StageRunner {
	if numOfWorkers <= 0 {
		panic("FixedWorkerPool: numOfWorkers must be > 0")
	}

	fifos := make([]StageRunner, numOfWorkers)
	for i := 0; i < numOfWorkers; i++ {
		fifos[i] = NewFIFO(proc)
	}

	return fixedWorkerPool{fifos}
}

// Run launches every worker and blocks until all of them exit.
func (r fixedWorkerPool) Run(ctx context.Context, params StageParams) {
	var wg sync.WaitGroup

	for i := 0; i < len(r.fifos); i++ {
		wg.Add(1)

		go func(index int) {
			defer wg.Done()

			r.fifos[index].Run(ctx, params)
		}(i)
	}

	wg.Wait()
}
