package content

import (
	"fmt"
	"sync"
)

// Registry maps content types to codecs. The text codec is always present.
type Registry struct {
	mu     sync.RWMutex
	codecs map[codecKey]Codec
}

// NewRegistry returns a registry holding the text codec followed by codecs.
// Later codecs overwrite earlier ones for the same authority and type.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{codecs: make(map[codecKey]Codec)}
	r.Register(TextCodec{})
	for _, c := range codecs {
		r.Register(c)
	}
	return r
}

// Register inserts or replaces the codec for its authority and type.
func (r *Registry) Register(codec Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[codec.ContentType().key()] = codec
}

// Resolve returns the codec for contentType if one is registered and its
// major version is at least contentType's.
func (r *Registry) Resolve(contentType ContentTypeID) (Codec, error) {
	r.mu.RLock()
	codec, ok := r.codecs[contentType.key()]
	r.mu.RUnlock()

	if !ok || contentType.VersionMajor > codec.ContentType().VersionMajor {
		return nil, fmt.Errorf("%w %s", ErrUnknownContentType, contentType)
	}
	return codec, nil
}

func (r *Registry) Codecs() []Codec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Codec, 0, len(r.codecs))
	for _, c := range r.codecs {
		out = append(out, c)
	}
	return out
}
