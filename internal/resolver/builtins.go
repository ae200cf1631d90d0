package resolver

import (
	"github.com/replikv/replikv/internal/crdt"
)

// builtins returns the standard resolver set, each with its prescribed
// priority and effect.
func builtins() []entry {
	return []entry{
		{def: Definition{Name: "lww", Priority: 0}, fn: lwwResolver},
		{def: Definition{Name: "first_write_wins", Priority: 100}, fn: firstWriteWinsResolver},
		{def: Definition{Name: "numeric_min", Priority: 50}, fn: numericExtreme(true)},
		{def: Definition{Name: "numeric_max", Priority: 50}, fn: numericExtreme(false)},
		{def: Definition{Name: "non_negative", Priority: 90}, fn: nonNegativeResolver},
		{def: Definition{Name: "array_union", Priority: 50}, fn: arrayUnionResolver},
		{def: Definition{Name: "deep_merge", Priority: 50}, fn: deepMergeResolver},
		{def: Definition{Name: "server_only", Priority: 100}, fn: serverOnlyResolver},
		{def: Definition{Name: "owner_only", Priority: 95}, fn: ownerOnlyResolver},
		{def: Definition{Name: "immutable", Priority: 100}, fn: immutableResolver},
		{def: Definition{Name: "version_increment", Priority: 90}, fn: versionIncrementResolver},
	}
}

// lwwResolver is the explicit form of the default rule: remote wins iff
// its timestamp is strictly greater.
func lwwResolver(ctx MergeContext) crdt.Resolution {
	if !ctx.HasLocalValue || ctx.RemoteTimestamp.After(ctx.LocalTimestamp) {
		return crdt.Resolution{Decision: crdt.DecisionAccept}
	}
	return crdt.Resolution{Decision: crdt.DecisionLocal}
}

func firstWriteWinsResolver(ctx MergeContext) crdt.Resolution {
	if ctx.HasLocalValue {
		return crdt.Resolution{Decision: crdt.DecisionReject, Reason: "first_write_wins: local already exists"}
	}
	return crdt.Resolution{Decision: crdt.DecisionAccept}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func numericExtreme(wantMin bool) Func {
	return func(ctx MergeContext) crdt.Resolution {
		remote, okR := asFloat(ctx.RemoteValue)
		if !ctx.HasLocalValue || !okR {
			return crdt.Resolution{Decision: crdt.DecisionAccept}
		}
		local, okL := asFloat(ctx.LocalValue)
		if !okL {
			return crdt.Resolution{Decision: crdt.DecisionAccept}
		}
		take := remote
		if wantMin && local < remote {
			take = local
		}
		if !wantMin && local > remote {
			take = local
		}
		return crdt.Resolution{Decision: crdt.DecisionMerge, Value: take}
	}
}

func nonNegativeResolver(ctx MergeContext) crdt.Resolution {
	n, ok := asFloat(ctx.RemoteValue)
	if !ok || n < 0 {
		return crdt.Resolution{Decision: crdt.DecisionReject, Reason: "non_negative: value missing or negative"}
	}
	return crdt.Resolution{Decision: crdt.DecisionDefault}
}

func arrayUnionResolver(ctx MergeContext) crdt.Resolution {
	remote, okR := ctx.RemoteValue.([]any)
	if !okR {
		return crdt.Resolution{Decision: crdt.DecisionDefault}
	}
	if !ctx.HasLocalValue {
		return crdt.Resolution{Decision: crdt.DecisionAccept}
	}
	local, okL := ctx.LocalValue.([]any)
	if !okL {
		return crdt.Resolution{Decision: crdt.DecisionAccept}
	}

	seen := make(map[any]struct{}, len(local)+len(remote))
	merged := make([]any, 0, len(local)+len(remote))
	for _, v := range local {
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			merged = append(merged, v)
		}
	}
	for _, v := range remote {
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			merged = append(merged, v)
		}
	}
	return crdt.Resolution{Decision: crdt.DecisionMerge, Value: merged}
}

func deepMergeResolver(ctx MergeContext) crdt.Resolution {
	remoteMap, okR := ctx.RemoteValue.(map[string]any)
	if !okR {
		return crdt.Resolution{Decision: crdt.DecisionDefault}
	}
	if !ctx.HasLocalValue {
		return crdt.Resolution{Decision: crdt.DecisionAccept}
	}
	localMap, okL := ctx.LocalValue.(map[string]any)
	if !okL {
		return crdt.Resolution{Decision: crdt.DecisionAccept}
	}
	return crdt.Resolution{Decision: crdt.DecisionMerge, Value: deepMerge(localMap, remoteMap)}
}

// deepMerge recursively merges src into dst, remote (src) winning at
// leaves; arrays are replaced wholesale rather than merged.
func deepMerge(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		existing, ok := out[k]
		if !ok {
			out[k] = v
			continue
		}
		existingMap, eIsMap := existing.(map[string]any)
		incomingMap, iIsMap := v.(map[string]any)
		if eIsMap && iIsMap {
			out[k] = deepMerge(existingMap, incomingMap)
			continue
		}
		out[k] = v
	}
	return out
}

func hasRole(auth *AuthInfo, role string) bool {
	if auth == nil {
		return false
	}
	for _, r := range auth.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func serverOnlyResolver(ctx MergeContext) crdt.Resolution {
	if hasRole(ctx.Auth, "server") || hasPrefix(ctx.RemoteNodeID, "server:") {
		return crdt.Resolution{Decision: crdt.DecisionAccept}
	}
	return crdt.Resolution{Decision: crdt.DecisionReject, Reason: "server_only: caller is not a server"}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func ownerOnlyResolver(ctx MergeContext) crdt.Resolution {
	if !ctx.HasLocalValue {
		return crdt.Resolution{Decision: crdt.DecisionDefault}
	}
	localMap, ok := ctx.LocalValue.(map[string]any)
	if !ok {
		return crdt.Resolution{Decision: crdt.DecisionDefault}
	}
	ownerID, ok := localMap["ownerId"].(string)
	if !ok {
		return crdt.Resolution{Decision: crdt.DecisionDefault}
	}
	if ctx.Auth != nil && ctx.Auth.UserID == ownerID {
		return crdt.Resolution{Decision: crdt.DecisionAccept}
	}
	return crdt.Resolution{Decision: crdt.DecisionReject, Reason: "owner_only: caller is not the owner"}
}

func immutableResolver(ctx MergeContext) crdt.Resolution {
	if ctx.HasLocalValue {
		return crdt.Resolution{Decision: crdt.DecisionReject, Reason: "immutable: value already set"}
	}
	return crdt.Resolution{Decision: crdt.DecisionAccept}
}

func versionIncrementResolver(ctx MergeContext) crdt.Resolution {
	remoteMap, okR := ctx.RemoteValue.(map[string]any)
	if !ctx.HasLocalValue || !okR {
		return crdt.Resolution{Decision: crdt.DecisionDefault}
	}
	localMap, okL := ctx.LocalValue.(map[string]any)
	if !okL {
		return crdt.Resolution{Decision: crdt.DecisionDefault}
	}
	remoteVersion, okRV := asFloat(remoteMap["version"])
	localVersion, okLV := asFloat(localMap["version"])
	if !okRV || !okLV || remoteVersion != localVersion+1 {
		return crdt.Resolution{Decision: crdt.DecisionReject, Reason: "version_increment: remote.version must equal local.version+1"}
	}
	return crdt.Resolution{Decision: crdt.DecisionAccept}
}
