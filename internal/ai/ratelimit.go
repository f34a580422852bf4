package ai

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to a provider with a token bucket shared by
// embedding and summarization requests.
type RateLimited struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimited wraps next so that it is called at most rps times per
// second on average, with bursts of up to burst calls. A non-positive rps
// returns next unchanged.
func NewRateLimited(next Client, rps float64, burst int) Client {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Embed(ctx, texts)
}

func (r *RateLimited) Summarize(ctx context.Context, contextText, question string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Summarize(ctx, contextText, question)
}

func (r *RateLimited) Dim() int {
	return r.next.Dim()
}
