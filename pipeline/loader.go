package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/awantoch/loanscore/utils"
)

// Source fetches raw artifact bytes by URL. blob.Store satisfies it.
type Source interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Load fetches, validates and compiles the pipeline document at url.
func Load(ctx context.Context, src Source, url string) (*Compiled, error) {
	start := time.Now()
	data, err := src.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch pipeline %s: %w", url, err)
	}
	doc, err := Decode(data, url)
	if err != nil {
		return nil, fmt.Errorf("decode pipeline %s: %w", url, err)
	}
	compiled, err := Compile(doc)
	if err != nil {
		return nil, fmt.Errorf("compile pipeline %s: %w", url, err)
	}
	utils.Debug("Loaded pipeline %s (%s) in %s", url, compiled.estimator.describe(), time.Since(start))
	return compiled, nil
}

// LoadFunc produces the pipeline a Resident holds.
type LoadFunc func(ctx context.Context) (*Compiled, error)

// Resident loads a pipeline at most once and hands the same instance to every
// caller. A failed load is cached too; callers get the same error until the
// process restarts.
type Resident struct {
	load     LoadFunc
	once     sync.Once
	pipeline *Compiled
	err      error
}

func NewResident(load LoadFunc) *Resident {
	return &Resident{load: load}
}

// NewResidentFrom wraps an already compiled pipeline.
func NewResidentFrom(p *Compiled) *Resident {
	r := &Resident{}
	r.once.Do(func() { r.pipeline = p })
	return r
}

// Get returns the resident pipeline, loading it on first use.
func (r *Resident) Get(ctx context.Context) (*Compiled, error) {
	r.once.Do(func() {
		if r.load == nil {
			r.err = fmt.Errorf("%w: no loader configured", ErrUnsupportedFormat)
			return
		}
		r.pipeline, r.err = r.load(ctx)
	})
	return r.pipeline, r.err
}
