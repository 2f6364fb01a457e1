package providers

import (
	"context"
	"time"
)

// MockAdvisor returns a canned advisory after an optional delay. Useful for
// running the client offline.
type MockAdvisor struct {
	Delay time.Duration
}

func NewMockAdvisor() *MockAdvisor {
	return &MockAdvisor{Delay: 800 * time.Millisecond}
}

func (m *MockAdvisor) Name() string {
	return "mock"
}

func (m *MockAdvisor) Advise(ctx context.Context, req AdvisoryRequest) (*AdvisoryResponse, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	finding := "Yellowing that starts on older leaves usually points to nitrogen deficiency."
	if req.Image != nil {
		finding = "The attached image shows uniform chlorosis on lower leaves, typical of nitrogen deficiency."
	}

	return &AdvisoryResponse{
		Advisory: Advisory{
			Language: string(req.Language),
			Heading:  "Nitrogen Deficiency",
			Finding:  finding,
			Steps:    []string{"Apply urea at 1 bag per acre", "Irrigate lightly after application"},
			Strategy: "Rotate wheat with legumes to rebuild soil nitrogen.",
		},
		Citations: []Citation{
			{Title: "PARC wheat production guide", URL: "https://www.parc.gov.pk"},
		},
		Model: "mock",
	}, nil
}
