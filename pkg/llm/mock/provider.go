package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/atelier-agent-org/atelier-agent/pkg/llm"
)

// Provider is a scriptable in-memory provider for tests. Responses are
// returned in the order they were queued; when the script runs out, the
// last message is echoed back.
type Provider struct {
	mu        sync.Mutex
	responses []*llm.ProviderResponse
	errs      []error
	Requests  []*llm.ProviderRequest
}

func New() *Provider {
	return &Provider{}
}

// Queue appends a scripted response.
func (p *Provider) Queue(resp *llm.ProviderResponse) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, resp)
	p.errs = append(p.errs, nil)
	return p
}

// QueueText appends a plain text response with no tool calls.
func (p *Provider) QueueText(content string) *Provider {
	return p.Queue(&llm.ProviderResponse{
		ID:           fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Model:        "mock-model",
		Content:      content,
		FinishReason: "stop",
	})
}

// QueueError appends a scripted transport failure.
func (p *Provider) QueueError(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, nil)
	p.errs = append(p.errs, err)
	return p
}

func (p *Provider) ID() string {
	return "mock"
}

func (p *Provider) Call(ctx context.Context, req *llm.ProviderRequest) (*llm.ProviderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Requests = append(p.Requests, req)

	if len(p.responses) > 0 {
		resp, err := p.responses[0], p.errs[0]
		p.responses = p.responses[1:]
		p.errs = p.errs[1:]
		if err != nil {
			return nil, err
		}
		return resp, nil
	}

	// Script exhausted: echo
	content := "Mock response"
	if len(req.Messages) > 0 {
		content = fmt.Sprintf("Mock response to: %s", req.Messages[len(req.Messages)-1].Content)
	}
	return &llm.ProviderResponse{
		ID:           fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Model:        "mock-model",
		Content:      content,
		FinishReason: "stop",
	}, nil
}
