// Package testutil provides test doubles shared across packages.
package testutil

import (
	"context"
	"hash/fnv"
	"sync"
)

// Provider is a deterministic in-memory embedding.Provider for tests.
//
// Vectors are derived from a hash of the text, so the same text always
// yields the same vector. Specific texts can be pinned to hand-built
// vectors with SetVector to make similarities predictable.
type Provider struct {
	mu       sync.Mutex
	dim      int
	calls    int
	embedded []string
	vectors  map[string][]float32
	err      error
	failures int
}

// NewProvider creates a Provider emitting vectors of the given dimension.
func NewProvider(dim int) *Provider {
	return &Provider{
		dim:     dim,
		vectors: make(map[string][]float32),
	}
}

// SetVector pins text to a fixed vector.
func (p *Provider) SetVector(text string, vec []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vectors[text] = vec
}

// FailWith makes every subsequent call return err until cleared with a nil
// argument.
func (p *Provider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	p.failures = -1
}

// FailTimes makes the next n calls return err, then succeed again.
func (p *Provider) FailTimes(n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
	p.failures = n
}

// Calls returns the number of provider calls issued (single and batch each
// count as one).
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Embedded returns every text embedded so far, in call order.
func (p *Provider) Embedded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.embedded))
	copy(out, p.embedded)
	return out
}

// Embed implements embedding.Provider.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if err := p.maybeFail(); err != nil {
		return nil, err
	}
	p.embedded = append(p.embedded, text)
	return p.vector(text), nil
}

// EmbedMany implements embedding.Provider.
func (p *Provider) EmbedMany(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if err := p.maybeFail(); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		p.embedded = append(p.embedded, t)
		out[i] = p.vector(t)
	}
	return out, nil
}

func (p *Provider) maybeFail() error {
	if p.err == nil {
		return nil
	}
	if p.failures < 0 {
		return p.err
	}
	if p.failures > 0 {
		p.failures--
		err := p.err
		if p.failures == 0 {
			p.err = nil
		}
		return err
	}
	return nil
}

func (p *Provider) vector(text string) []float32 {
	if vec, ok := p.vectors[text]; ok {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out
	}

	// xorshift seeded by the text hash: stable across runs.
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()
	if seed == 0 {
		seed = 1
	}

	vec := make([]float32, p.dim)
	for i := range vec {
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		vec[i] = float32(int64(seed%2000)-1000) / 1000.0
	}
	return vec
}
