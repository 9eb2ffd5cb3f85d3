// ABOUTME: Resolve-once registry mapping type descriptors to handlers
// ABOUTME: Concurrent first resolutions converge on a single cached handler

// Package layout implements a type-driven binary codec with structural
// fingerprints.
package layout

import (
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Recorder observes registry lookups. Outcome is one of "hit", "miss" or
// "error".
type Recorder interface {
	TypeResolved(kind, outcome string)
}

type entry struct {
	h   Handler
	err error
}

// Registry resolves Types to Handlers. Each distinct type is classified once;
// both handlers and resolution failures are cached.
type Registry struct {
	log      zerolog.Logger
	recorder Recorder

	group   singleflight.Group
	entries sync.Map // Type.Key() -> *entry
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used to report resolutions.
func WithLogger(l zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// WithRecorder sets the recorder notified of every lookup.
func WithRecorder(rec Recorder) RegistryOption {
	return func(r *Registry) { r.recorder = rec }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by Resolve.
func Default() *Registry { return defaultRegistry }

// Resolve resolves t with the default registry.
func Resolve(t Type) (Handler, error) { return defaultRegistry.Resolve(t) }

// Resolve returns the handler for t, building it on first use.
func (r *Registry) Resolve(t Type) (Handler, error) {
	key := t.Key()
	if v, ok := r.entries.Load(key); ok {
		e := v.(*entry)
		if e.err != nil {
			r.record(t, "error")
		} else {
			r.record(t, "hit")
		}
		return e.h, e.err
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		if e, ok := r.entries.Load(key); ok {
			return e, nil
		}
		h, err := r.build(t)
		e := &entry{h: h, err: err}
		r.entries.Store(key, e)
		if err != nil {
			r.log.Warn().Err(err).Str("type", key).Msg("type resolution failed")
		} else {
			r.log.Debug().Str("type", key).Str("fingerprint", h.Fingerprint().Hex()).Msg("type resolved")
		}
		return e, nil
	})
	e := v.(*entry)
	if e.err != nil {
		r.record(t, "error")
	} else {
		r.record(t, "miss")
	}
	return e.h, e.err
}

// Invalidate drops the cached resolution of t. Handlers already handed out
// stay valid.
func (r *Registry) Invalidate(t Type) {
	r.entries.Delete(t.Key())
}

// Len returns the number of cached resolutions, failures included.
func (r *Registry) Len() int {
	n := 0
	r.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (r *Registry) record(t Type, outcome string) {
	if r.recorder != nil {
		r.recorder.TypeResolved(t.kind.String(), outcome)
	}
}

func (r *Registry) build(t Type) (Handler, error) {
	if h, ok := newFixedHandler(t); ok {
		h.setFingerprint(fingerprint(t, nil))
		return h, nil
	}

	var (
		h      Handler
		nested []Handler
	)
	switch t.kind {
	case KindString:
		h = &stringHandler{base: base{typ: t}}
	case KindBytes:
		h = &bytesHandler{base: base{typ: t}}
	case KindDecimal:
		h = &decimalHandler{base: base{typ: t}}

	case KindArray, KindList, KindOptional:
		if t.elem == nil {
			return nil, unsupported(t, "missing element type")
		}
		if t.kind == KindArray && t.length < 0 {
			return nil, unsupported(t, "negative length %d", t.length)
		}
		elem, err := r.nested(t, *t.elem)
		if err != nil {
			return nil, err
		}
		nested = []Handler{elem}
		switch t.kind {
		case KindArray:
			h = &arrayHandler{base: base{typ: t}, elem: elem, length: t.length}
		case KindList:
			h = &listHandler{base: base{typ: t}, elem: elem}
		default:
			h = &optionalHandler{base: base{typ: t}, elem: elem}
		}

	case KindMap:
		if t.key == nil || t.elem == nil {
			return nil, unsupported(t, "missing key or value type")
		}
		if !comparableKey(t.key.kind) {
			return nil, unsupported(t, "%s cannot be a map key", t.key.kind)
		}
		key, err := r.nested(t, *t.key)
		if err != nil {
			return nil, err
		}
		value, err := r.nested(t, *t.elem)
		if err != nil {
			return nil, err
		}
		nested = []Handler{key, value}
		h = &mapHandler{base: base{typ: t}, key: key, value: value}

	case KindEnum:
		if len(t.variants) == 0 {
			return nil, unsupported(t, "enum without variants")
		}
		seen := make(map[string]struct{}, len(t.variants))
		for _, v := range t.variants {
			if v == "" {
				return nil, unsupported(t, "empty variant name")
			}
			if _, dup := seen[v]; dup {
				return nil, unsupported(t, "duplicate variant %q", v)
			}
			seen[v] = struct{}{}
		}
		h = newEnumHandler(t)

	case KindObject:
		oh := &objectHandler{
			base:  base{typ: t},
			index: make(map[string]int, len(t.fields)),
		}
		for i, f := range t.fields {
			if f.Name == "" {
				return nil, unsupported(t, "field %d has no name", i)
			}
			if _, dup := oh.index[f.Name]; dup {
				return nil, unsupported(t, "duplicate field %q", f.Name)
			}
			fh, err := r.nested(t, f.Type)
			if err != nil {
				return nil, err
			}
			oh.index[f.Name] = i
			oh.names = append(oh.names, f.Name)
			oh.fields = append(oh.fields, fh)
		}
		nested = oh.fields
		h = oh

	default:
		return nil, unsupported(t, "unknown kind %s", t.kind)
	}

	h.(interface{ setFingerprint(Fingerprint) }).setFingerprint(fingerprint(t, nested))
	return h, nil
}

func (r *Registry) nested(parent, t Type) (Handler, error) {
	h, err := r.Resolve(t)
	if err != nil {
		return nil, &UnsupportedTypeError{Type: parent.Key(), Reason: err.Error()}
	}
	return h, nil
}

func comparableKey(k Kind) bool {
	switch k {
	case KindList, KindMap, KindObject, KindBytes, KindDecimal, KindArray, KindOptional, KindInvalid:
		return false
	}
	return true
}
