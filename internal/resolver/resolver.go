// Package resolver implements the pluggable conflict-resolver registry:
// glob-matched, priority-ordered merge policies consulted by the CRDT
// stores before a default last-write-wins decision is applied.
package resolver

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/replikv/replikv/internal/crdt"
	"github.com/replikv/replikv/internal/hlc"
)

// ErrInvalidResolverDef is returned when a resolver definition fails
// validation (empty/too-long name, oversized code body, priority out of
// range, or a denied code token).
var ErrInvalidResolverDef = errors.New("resolver: invalid resolver definition")

const (
	maxNameLength   = 100
	maxCodeBytes    = 50_000
	minPriority     = 0
	maxPriority     = 100
	defaultPriority = 50
)

// denyTokens are forbidden substrings in a resolver's code body. The
// sandboxed execution of that code is an external collaborator; the
// registry only screens source text before it is ever handed off.
var denyTokens = []string{"eval", "require", "import", "fetch", "setTimeout", "setInterval"}

// MergeContext is the information a resolver function receives to decide
// the fate of an incoming merge.
type MergeContext struct {
	MapName         string
	Key             string
	LocalValue      any
	HasLocalValue   bool
	RemoteValue     any
	LocalTimestamp  hlc.Timestamp
	RemoteTimestamp hlc.Timestamp
	RemoteNodeID    string
	Auth            *AuthInfo
	ReadEntry       func(key string) (any, bool)
}

// AuthInfo carries caller identity for resolvers like owner_only and
// server_only.
type AuthInfo struct {
	UserID string
	Roles  []string
}

// Func is a resolver's decision logic.
type Func func(ctx MergeContext) crdt.Resolution

// Definition describes one registered resolver.
type Definition struct {
	Name       string
	Priority   int // [0,100], default 50
	KeyPattern string
	Native     Func
	Code       string // opaque source for sandboxed execution; validated, never run here
}

func (d Definition) validate() error {
	if d.Name == "" || len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d chars, got %q", ErrInvalidResolverDef, maxNameLength, d.Name)
	}
	if len(d.Code) > maxCodeBytes {
		return fmt.Errorf("%w: code exceeds %d bytes", ErrInvalidResolverDef, maxCodeBytes)
	}
	if d.Priority < minPriority || d.Priority > maxPriority {
		return fmt.Errorf("%w: priority %d out of range [%d,%d]", ErrInvalidResolverDef, d.Priority, minPriority, maxPriority)
	}
	for _, tok := range denyTokens {
		if strings.Contains(d.Code, tok) {
			return fmt.Errorf("%w: forbidden token %q in code", ErrInvalidResolverDef, tok)
		}
	}
	return nil
}

// entry is a validated, registered resolver.
type entry struct {
	def Definition
	fn  Func
}

// Registry holds glob-matched, priority-ordered resolvers and dispatches
// merge decisions to them. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

// NewRegistry creates a registry with only the default "lww" resolver
// active (it matches every key but never rejects, so it changes nothing
// over plain last-write-wins). The rest of the built-in resolvers are
// policy choices — first_write_wins, server_only, owner_only, immutable,
// and the rest can reject a merge outright — and would silently break
// default LWW convergence if they fired on every key. They're available
// by name via RegisterBuiltin/BuiltinNames, but only take effect once a
// caller binds one to an explicit KeyPattern.
func NewRegistry() *Registry {
	r := &Registry{}
	for _, b := range builtins() {
		if b.def.Name == "lww" {
			_ = r.Register(b.def, b.fn)
		}
	}
	return r
}

// BuiltinNames lists every built-in resolver's name, whether or not it is
// currently active on any particular Registry.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins()))
	for _, b := range builtins() {
		names = append(names, b.def.Name)
	}
	return names
}

// RegisterBuiltin activates a built-in resolver by name, scoped to
// keyPattern — a glob (as matched by path.Match) it must be bound to, so
// it never runs match-all by accident. Returns ErrInvalidResolverDef if
// name isn't a known built-in or keyPattern is empty.
func (r *Registry) RegisterBuiltin(name, keyPattern string) error {
	if keyPattern == "" {
		return fmt.Errorf("%w: RegisterBuiltin requires a non-empty keyPattern for %q", ErrInvalidResolverDef, name)
	}
	for _, b := range builtins() {
		if b.def.Name == name {
			def := b.def
			def.KeyPattern = keyPattern
			return r.Register(def, b.fn)
		}
	}
	return fmt.Errorf("%w: no built-in resolver named %q", ErrInvalidResolverDef, name)
}

// Register validates def, binds it to fn (the native implementation — code
// bodies are validated here but executed only by an external sandbox), and
// adds it to the registry.
func (r *Registry) Register(def Definition, fn Func) error {
	if def.Priority == 0 && def.Name != "lww" {
		def.Priority = defaultPriority
	}
	if err := def.validate(); err != nil {
		return err
	}
	if fn == nil && def.Native != nil {
		fn = def.Native
	}
	if fn == nil {
		return fmt.Errorf("%w: resolver %q has neither native function nor fn", ErrInvalidResolverDef, def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.def.Name == def.Name {
			r.entries[i] = entry{def: def, fn: fn}
			return nil
		}
	}
	r.entries = append(r.entries, entry{def: def, fn: fn})
	return nil
}

// Unregister removes a resolver by name. Returns true if one was removed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.def.Name == name {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Resolve selects resolvers whose key-glob matches ctx.Key, orders them by
// descending priority, and invokes them in order. The first decision that
// is neither DecisionLocal nor DecisionDefault wins; if every matching
// resolver (or none match) returns one of those two, the zero Resolution
// (DecisionDefault) is returned
// so the caller falls back to plain LWW.
func (r *Registry) Resolve(ctx MergeContext) crdt.Resolution {
	r.mu.RLock()
	matched := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.def.KeyPattern == "" {
			matched = append(matched, e)
			continue
		}
		if ok, _ := path.Match(e.def.KeyPattern, ctx.Key); ok {
			matched = append(matched, e)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].def.Priority > matched[j].def.Priority
	})

	for _, e := range matched {
		res := e.fn(ctx)
		if res.Decision != crdt.DecisionLocal && res.Decision != crdt.DecisionDefault {
			return res
		}
	}
	return crdt.Resolution{Decision: crdt.DecisionDefault}
}

// Hook adapts the registry into a crdt.ResolverHook bound to a fixed map
// name, so it can be installed directly on a crdt.Store or crdt.ORSetStore.
func (r *Registry) Hook(mapName string, auth *AuthInfo, readEntry func(key string) (any, bool)) crdt.ResolverHook {
	return func(key string, local *crdt.Record, incoming crdt.Record) (crdt.Resolution, error) {
		ctx := MergeContext{
			MapName:         mapName,
			Key:             key,
			RemoteValue:     incoming.Value,
			RemoteTimestamp: incoming.Timestamp,
			RemoteNodeID:    incoming.Timestamp.NodeID,
			Auth:            auth,
			ReadEntry:       readEntry,
		}
		if local != nil {
			ctx.HasLocalValue = true
			ctx.LocalValue = local.Value
			ctx.LocalTimestamp = local.Timestamp
		}
		return r.Resolve(ctx), nil
	}
}

// Definitions returns a snapshot of all registered definitions.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.def)
	}
	return out
}
