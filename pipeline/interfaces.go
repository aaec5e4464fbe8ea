package pipeline

import "context"

// Source should be implemented by types that generate Payload instances that
// can be used as inputs for a Pipeline instance.
type Source interface {
	// Next loads the next available payload from the source and returns true.
	// When no more payloads are available or an error occurs, calls to Next
	// return false.
	Next(context.Context) bool

	// Payload returns the current payload to be processed.
	Payload() Payload

	// Error returns the last error encountered by the source.
	Error() error
}

// Payload should be implemented by types that can serve as payloads for the pipeline.
type Payload interface {
	// MarkAsProcessed is invoked when the payload either reaches the
	// pipeline sink or gets discarded by one of the pipeline stages.
	MarkAsProcessed()
}

// Processor should be implemented by types that process payloads for a
// pipeline stage. Returning a nil payload discards the input payload without
// failing the pipeline; returning an error aborts the whole pipeline.
type Processor interface {
	Process(context.Context, Payload) (Payload, error)
}

// ProcessorFunc serves as an adapter that allows the use of normal functions
// as processor instances.
type ProcessorFunc func(context.Context, Payload) (Payload, error)

// Process calls f(ctx, p).
func (f ProcessorFunc) Process(ctx context.Context, p Payload) (Payload, error) {
	return f(ctx, p)
}

// StageRunner should be implemented by types that can be strung together
// to form a multi-stage pipeline.
//
// Calls to Run are expected to block until the stage input channel is
// closed, the provided context expires or an error occurs while processing
// payloads.
type StageRunner interface {
	Run(context.Context, StageParams)
}

// StageParams describes the channels a stage reads from and writes to.
type StageParams interface {
	// StageIndex returns the current position of this stage in the pipeline.
	StageIndex() int

	// Input returns a read-only channel for reading the input payloads
	// for a stage.
	Input() <-chan Payload

	// Output returns a write-only channel for writing the output payloads
	// for a stage.
	Output() chan<- Payload

	// Error returns a write-only channel for reporting processing errors.
	Error() chan<- error
}

// Sink should be implemented by types that serve as the last part of the
// pipeline.
type Sink interface {
	// Consume processes a payload instance that has been emitted out of
	// a pipeline.
	Consume(context.Context, Payload) error
}
