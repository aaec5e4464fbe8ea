/*
	pipeline package provides an asynchronous multi-stage pipeline exposed
	through a synchronous API. A pipeline reads payloads from a Source,
	passes them through zero or more StageRunner instances and hands the
	results to a Sink. The metadata collectors use it to fan per-tag
	registry requests out to a bounded pool of workers.
*/

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Pipeline is built out of an input source, an output sink and zero or more
// processing stages.
type Pipeline struct {
	stages []StageRunner
}

// New returns a pipeline that runs the provided stages in order.
func New(stages ...StageRunner) *Pipeline {
	return &Pipeline{stages}
}

// Execute reads the contents of src, sends them through the pipeline stages
// and directs the results to sink.
//
// Calls to Execute block until all data from the source has been processed
// or discarded, an error is reported by any pipeline component or the
// supplied context is cancelled. It is safe to call Execute concurrently
// with different sources and sinks.
func (p *Pipeline) Execute(ctx context.Context, src Source, sink Sink) error {
	var wg sync.WaitGroup
	executionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The output of the i-th stage is the input of the (i+1)-th stage. One
	// extra channel connects the source to the sink when no stages exist.
	stageChans := make([]chan Payload, len(p.stages)+1)
	for i := 0; i < len(stageChans); i++ {
		stageChans[i] = make(chan Payload)
	}

	// Room for one error per stage plus the source and the sink.
	errChan := make(chan error, len(p.stages)+2)

	for i := 0; i < len(p.stages); i++ {
		wg.Add(1)

		go func(index int) {
			defer wg.Done()

			p.stages[index].Run(executionCtx, &stageParams{
				stage:   index,
				inChan:  stageChans[index],
				outChan: stageChans[index+1],
				errChan: errChan,
			})

			// A returning stage signals the next one that no more data
			// will arrive.
			close(stageChans[index+1])
		}(i)
	}

	wg.Add(2)

	go func() {
		defer wg.Done()

		sourceWorker(executionCtx, src, stageChans[0], errChan)
		close(stageChans[0])
	}()

	go func() {
		defer wg.Done()

		sinkWorker(executionCtx, sink, stageChans[len(stageChans)-1], errChan)
	}()

	go func() {
		wg.Wait()

		close(errChan)
		cancel()
	}()

	var err error
	for stageErr := range errChan {
		err = multierror.Append(err, stageErr)

		// Trigger the shutdown of the entire pipeline.
		cancel()
	}

	return err
}

func sourceWorker(
	ctx context.Context, src Source,
	outChan chan<- Payload, errChan chan<- error,
) {

	for src.Next(ctx) {
		p := src.Payload()

		select {
		case <-ctx.Done():
			return
		case outChan <- p:
		}
	}

	if err := src.Error(); err != nil {
		mayEmitError(fmt.Errorf("pipeline source: %w", err), errChan)
	}
}

func sinkWorker(
	ctx context.Context, sink Sink,
	inChan <-chan Payload, errChan chan<- error,
) {

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-inChan:
			if !ok {
				return
			}

			if err := sink.Consume(ctx, payload); err != nil {
				mayEmitError(fmt.Errorf("pipeline sink: %w", err), errChan)

				return
			}

			payload.MarkAsProcessed()
		}
	}
}

// mayEmitError drops err if errChan is already full.
func mayEmitError(err error, errChan chan<- error) {
	select {
	case errChan <- err:
	default:
	}
}
