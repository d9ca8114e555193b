package source

import (
	"context"

	"videometadata/internal/core/video"
)

// Adapter is the contract every external metadata source implements.
//
// FetchOne returns nil on an ordinary lookup miss or transient failure; it
// never turns a miss into an error. FetchBatch returns a slice of the same
// length and order as ids, with nil entries for missing or failed lookups.
type Adapter interface {
	FetchOne(ctx context.Context, videoID string) (*video.Video, error)
	FetchBatch(ctx context.Context, videoIDs []string) ([]*video.Video, error)
	SourceName() string
	IsAvailable() bool
}

// Registry resolves adapters by source name. Adapters are registered once at
// startup; there is no runtime filtering over an adapter list.
type Registry struct {
	order    []string
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		name := a.SourceName()
		if _, dup := r.adapters[name]; dup {
			continue
		}
		r.adapters[name] = a
		r.order = append(r.order, name)
	}
	return r
}

// Resolve returns the adapter for name only when it is registered and
// currently available.
func (r *Registry) Resolve(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	if !ok || !a.IsAvailable() {
		return nil, false
	}
	return a, true
}

// Names lists registered source names in registration order, available or not.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
