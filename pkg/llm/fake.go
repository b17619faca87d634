package llm

import "context"

// FakeClient is a scripted Client for tests: it returns Responses in order,
// looping the last one if more calls arrive than were scripted. Grounded on
// the ambient test-tooling decision to avoid real network calls in package
// tests (SPEC_FULL.md's test-tooling section).
type FakeClient struct {
	Responses []Response
	Requests  []Request // every request seen, for assertions
	calls     int
}

func (f *FakeClient) Complete(ctx context.Context, req Request) (Response, error) {
	f.Requests = append(f.Requests, req)
	if len(f.Responses) == 0 {
		return Response{}, nil
	}
	i := f.calls
	if i >= len(f.Responses) {
		i = len(f.Responses) - 1
	}
	f.calls++
	return f.Responses[i], nil
}
