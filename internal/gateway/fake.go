package gateway

import (
	"context"
	"fmt"
	"sync"
)

// FakeProvider records originations in memory. Test helper.
type FakeProvider struct {
	mu    sync.Mutex
	calls []CallRequest
	Err   error
}

func NewFakeProvider() *FakeProvider { return &FakeProvider{} }

func (p *FakeProvider) PlaceCall(ctx context.Context, req CallRequest) (PlacedCall, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return PlacedCall{}, p.Err
	}
	p.calls = append(p.calls, req)
	return PlacedCall{
		ProviderCallID: fmt.Sprintf("CA%032d", len(p.calls)),
		Status:         "queued",
	}, nil
}

func (p *FakeProvider) Calls() []CallRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CallRequest, len(p.calls))
	copy(out, p.calls)
	return out
}
