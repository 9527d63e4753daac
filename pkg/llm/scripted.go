package llm

import (
	"context"
	"sync"
)

// Scripted is a deterministic offline provider. Queued responses are returned
// in order; once the queue is empty the last user message is echoed back.
type Scripted struct {
	mu        sync.Mutex
	queue     []scriptedReply
	responder func(Request) (*Response, error)
	pingErr   error
	calls     []Request
}

type scriptedReply struct {
	resp *Response
	err  error
}

// NewScripted creates a scripted provider preloaded with responses
func NewScripted(responses ...Response) *Scripted {
	s := &Scripted{}
	s.Enqueue(responses...)
	return s
}

// Name returns the provider name
func (s *Scripted) Name() string {
	return "scripted"
}

// Enqueue appends responses to the script
func (s *Scripted) Enqueue(responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range responses {
		resp := responses[i]
		s.queue = append(s.queue, scriptedReply{resp: &resp})
	}
}

// EnqueueError makes the next unanswered call fail with err
func (s *Scripted) EnqueueError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, scriptedReply{err: err})
}

// SetResponder replaces the echo fallback used once the queue is drained
func (s *Scripted) SetResponder(fn func(Request) (*Response, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.responder = fn
}

// SetPingError controls the result of Ping
func (s *Scripted) SetPingError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pingErr = err
}

// Calls returns the requests received so far
func (s *Scripted) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// Ping reports the configured ping error
func (s *Scripted) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pingErr
}

// Call returns the next scripted reply
func (s *Scripted) Call(ctx context.Context, request Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.calls = append(s.calls, request)
	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		if next.err != nil {
			return nil, next.err
		}
		resp := *next.resp
		return &resp, nil
	}
	responder := s.responder
	s.mu.Unlock()

	if responder != nil {
		return responder(request)
	}
	return echo(request), nil
}

func echo(request Request) *Response {
	for i := len(request.Messages) - 1; i >= 0; i-- {
		if request.Messages[i].Role == "user" {
			return &Response{Content: request.Messages[i].Content}
		}
	}
	return &Response{}
}
