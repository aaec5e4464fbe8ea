package service

import (
	"context"
	"net"
	"net/http"
	"time"

	"gopkg.in/check.v1"
)

var _ = check.Suite(new(ServeHTTPTestSuite))

type ServeHTTPTestSuite struct{}

func (s *ServeHTTPTestSuite) TestInFlightRequestIsDrained(c *check.C) {
	entered, release := make(chan struct{}), make(chan struct{})
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusNoContent)
	})

	l := listen(c)
	ctx, cancelFn := context.WithCancel(context.TODO())
	done := serveAsync(ctx, l, h, 5*time.Second)
	responses := get(l)

	<-entered
	cancelFn()

	select {
	case <-done:
		c.Fatal("server stopped with a request in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	c.Assert(<-done, check.IsNil)

	res := <-responses
	c.Assert(res.err, check.IsNil)
	c.Assert(res.status, check.Equals, http.StatusNoContent)
}

func (s *ServeHTTPTestSuite) TestShutdownGivesUpAfterGracePeriod(c *check.C) {
	entered, release := make(chan struct{}), make(chan struct{})
	defer close(release)

	h := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		close(entered)
		<-release
	})

	l := listen(c)
	ctx, cancelFn := context.WithCancel(context.TODO())
	done := serveAsync(ctx, l, h, 20*time.Millisecond)
	_ = get(l)

	<-entered
	cancelFn()

	c.Assert(<-done, check.ErrorMatches, "graceful shutdown: context deadline exceeded")
}

func (s *ServeHTTPTestSuite) TestListenerFailureIsReturned(c *check.C) {
	l := listen(c)
	c.Assert(l.Close(), check.IsNil)

	err := ServeHTTP(context.TODO(), l, http.NotFoundHandler(), time.Second)
	c.Assert(err, check.NotNil)
}

type response struct {
	status int
	err    error
}

func listen(c *check.C) net.Listener {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	c.Assert(err, check.IsNil)

	return l
}

func serveAsync(ctx context.Context, l net.Listener, h http.Handler, grace time.Duration) <-chan error {
	done := make(chan error, 1)
	go func() { done <- ServeHTTP(ctx, l, h, grace) }()

	return done
}

func get(l net.Listener) <-chan response {
	out := make(chan response, 1)
	go func() {
		res, err := http.Get("http://" + l.Addr().String() + "/")
		if err != nil {
			out <- response{err: err}

			return
		}
		_ = res.Body.Close()

		out <- response{status: res.StatusCode}
	}()

	return out
}
