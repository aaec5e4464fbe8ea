/*
	service package defines the unit of work run by the graph-builder and
	policy-engine binaries and a Group that starts several of them side by
	side and stops them in reverse start order.
*/

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrUnexpectedExit is reported for a service whose Run returned without
// an error before the group was asked to stop.
var ErrUnexpectedExit = errors.New("exited before shutdown was requested")

// Service describes a long running component of a graph server process.
type Service interface {
	// Name returns the name of the service.
	Name() string

	// Run executes the service and blocks until the context gets cancelled
	// or an error occurs.
	Run(context.Context) error
}

// Group is a list of Service instances listed in start order.
type Group []Service

type member struct {
	svc    Service
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Execute runs every service in the group until ctx is cancelled or any
// service exits. Each service gets its own context so that shutdown is
// ordered: services are cancelled from last to first and each one is
// waited for before the previous one is cancelled. Errors are reported
// with the name of the service that produced them.
func (g Group) Execute(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	base := context.WithoutCancel(ctx)
	exited := make(chan struct{}, len(g))
	members := make([]*member, 0, len(g))

	for _, s := range g {
		runCtx, cancelFn := context.WithCancel(base)
		m := &member{svc: s, cancel: cancelFn, done: make(chan struct{})}
		members = append(members, m)

		go func() {
			defer close(m.done)

			m.err = m.svc.Run(runCtx)
			if m.err == nil && runCtx.Err() == nil {
				m.err = ErrUnexpectedExit
			}

			exited <- struct{}{}
		}()
	}

	select {
	case <-ctx.Done():
	case <-exited:
	}

	var err error
	for i := len(members) - 1; i >= 0; i-- {
		m := members[i]
		m.cancel()
		<-m.done

		if m.err != nil {
			err = multierror.Append(err, fmt.Errorf("%s: %w", m.svc.Name(), m.err))
		}
	}

	return err
}
