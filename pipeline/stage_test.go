package pipeline_test

import (
	"context"
	"sort"
	"time"

	check "gopkg.in/check.v1"

	"github.com/mycok/uGraph/pipeline"
)

var _ = check.Suite(new(stageRunnerTestSuite))

type stageRunnerTestSuite struct{}

func (s *stageRunnerTestSuite) TestFixedWorkerPoolRunsInParallel(c *check.C) {
	numOfWorkers := 6
	syncChan := make(chan struct{})
	rendezvousChan := make(chan struct{})
	doneChan := make(chan error, 1)

	proc := pipeline.ProcessorFunc(func(_ context.Context, p pipeline.Payload) (pipeline.Payload, error) {
		syncChan <- struct{}{}
		<-rendezvousChan

		return p, nil
	})

	src := &sliceSource{data: tagPayloads(numOfWorkers)}
	sink := new(collectingSink)
	p := pipeline.New(pipeline.NewFixedWorkerPool(proc, numOfWorkers))

	go func() {
		doneChan <- p.Execute(context.TODO(), src, sink)
	}()

	// Every payload must be held by a worker at the same time.
	for i := 0; i < numOfWorkers; i++ {
		select {
		case <-syncChan:
		case <-time.After(10 * time.Second):
			c.Fatalf("timed out waiting for worker %d to reach sync point", i)
		}
	}

	close(rendezvousChan)

	select {
	case err := <-doneChan:
		c.Assert(err, check.IsNil)
	case <-time.After(10 * time.Second):
		c.Fatal("timed out waiting for pipeline to complete")
	}

	var got []string
	for _, p := range sink.data {
		got = append(got, p.(*tagPayload).tag)
	}
	sort.Strings(got)
	c.Assert(got, check.DeepEquals, []string{"1.0.0", "1.1.0", "1.2.0", "1.3.0", "1.4.0", "1.5.0"})
}

func (s *stageRunnerTestSuite) TestFixedWorkerPoolRejectsZeroWorkers(c *check.C) {
	c.Assert(func() { pipeline.NewFixedWorkerPool(passThrough(), 0) }, check.PanicMatches, ".*numOfWorkers must be > 0.*")
}
