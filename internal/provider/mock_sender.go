package provider

import (
	"context"
	"fmt"
	"math/rand"
)

// MockSender simulates a provider for local development: 90% success, the
// rest split between transient and permanent failures.
type MockSender struct{}

func (s *MockSender) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	r := rand.Float64()
	switch {
	case r < 0.9:
		return &SendResponse{
			MessageID:   fmt.Sprintf("mock-%d", rand.Int63()),
			RawResponse: `{"status":"accepted"}`,
		}, nil
	case r < 0.97:
		return nil, NewTransient("mock provider timed out", nil)
	default:
		return nil, NewPermanent("mock provider rejected destination", nil)
	}
}

var _ Sender = (*MockSender)(nil)
