package providers

import (
	"context"
	"fmt"

	"github.com/kissan-ai/kissan/pkg/logger"
)

// FallbackAdvisor wraps a primary and fallback Advisor.
// If the primary fails, it transparently retries with the fallback.
type FallbackAdvisor struct {
	primary  Advisor
	fallback Advisor
}

func NewFallbackAdvisor(primary, fallback Advisor) *FallbackAdvisor {
	return &FallbackAdvisor{primary: primary, fallback: fallback}
}

func (p *FallbackAdvisor) Name() string {
	return p.primary.Name() + "+" + p.fallback.Name()
}

func (p *FallbackAdvisor) Advise(ctx context.Context, req AdvisoryRequest) (*AdvisoryResponse, error) {
	resp, err := p.primary.Advise(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	logger.WarnCF("fallback", fmt.Sprintf("Primary advisor failed (%s), falling back to %s", p.primary.Name(), p.fallback.Name()),
		map[string]interface{}{
			"error": err.Error(),
		})

	fbResp, fbErr := p.fallback.Advise(ctx, req)
	if fbErr != nil {
		// Keep the primary error in the chain so a credential problem there
		// is still reported as a configuration failure.
		return nil, fmt.Errorf("primary failed: %w; fallback also failed: %v", err, fbErr)
	}
	return fbResp, nil
}

// Primary returns the underlying primary advisor.
func (p *FallbackAdvisor) Primary() Advisor {
	return p.primary
}

// Fallback returns the underlying fallback advisor.
func (p *FallbackAdvisor) Fallback() Advisor {
	return p.fallback
}
