package livequery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replikv/replikv/internal/attribute"
	"github.com/replikv/replikv/internal/index"
	"github.com/replikv/replikv/internal/planner"
	"github.com/replikv/replikv/internal/query"
)

func statusAttribute() attribute.Attribute {
	return attribute.Simple("status", func(record any) (any, bool) {
		m, ok := record.(map[string]any)
		if !ok {
			return nil, false
		}
		v, present := m["status"]
		return v, present
	})
}

func newTestManager(records map[string]any) *Manager {
	attrs := query.Attributes{"status": statusAttribute()}
	fallback := index.NewFallbackIndex()
	lookup := func(key string) (any, bool) { r, ok := records[key]; return r, ok }
	allKeys := func() []string {
		out := make([]string, 0, len(records))
		for k := range records {
			out = append(out, k)
		}
		return out
	}
	catalog := planner.NewCatalog(attrs, lookup, allKeys, fallback)
	snapshot := func() map[string]any {
		cp := make(map[string]any, len(records))
		for k, v := range records {
			cp[k] = v
		}
		return cp
	}
	return NewManager(catalog, attrs, snapshot)
}

func TestSubscribeDeliversInitialEventSynchronously(t *testing.T) {
	records := map[string]any{
		"a": map[string]any{"status": "open"},
		"b": map[string]any{"status": "closed"},
	}
	m := newTestManager(records)

	var initial []string
	delivered := false
	unsubscribe := m.Subscribe(query.Eq("status", "open"), func(e Event) {
		if e.Type == EventInitial {
			delivered = true
			initial = e.Keys
		}
	})
	defer unsubscribe()

	require.True(t, delivered)
	assert.Equal(t, []string{"a"}, initial)
}

func TestOnRecordAddedDispatchesDelta(t *testing.T) {
	records := map[string]any{"a": map[string]any{"status": "closed"}}
	m := newTestManager(records)

	var events []Event
	unsubscribe := m.Subscribe(query.Eq("status", "open"), func(e Event) {
		events = append(events, e)
	})
	defer unsubscribe()

	records["b"] = map[string]any{"status": "open"}
	m.OnRecordAdded("b", records["b"])

	require.Len(t, events, 2) // initial + delta
	delta := events[1]
	assert.Equal(t, EventDelta, delta.Type)
	assert.Equal(t, index.ChangeAdded, delta.Change)
	assert.Equal(t, OpAdd, delta.Operation)
	assert.Equal(t, 1, delta.NewResultCount)
}

func TestOnRecordUpdatedAndRemovedDispatch(t *testing.T) {
	records := map[string]any{"a": map[string]any{"status": "open"}}
	m := newTestManager(records)

	var events []Event
	unsubscribe := m.Subscribe(query.Eq("status", "open"), func(e Event) {
		events = append(events, e)
	})
	defer unsubscribe()

	m.OnRecordUpdated("a", records["a"], map[string]any{"status": "closed"})
	require.Len(t, events, 2)
	assert.Equal(t, index.ChangeRemoved, events[1].Change)

	m.OnRecordRemoved("a", map[string]any{"status": "closed"})
	require.Len(t, events, 2) // no second removal delta: already absent from standing set
}

func TestUnsubscribeDropsStandingIndexWhenLastCallbackRemoved(t *testing.T) {
	records := map[string]any{"a": map[string]any{"status": "open"}}
	m := newTestManager(records)

	unsubscribe := m.Subscribe(query.Eq("status", "open"), func(Event) {})
	assert.Equal(t, 1, m.SubscriptionCount())

	unsubscribe()
	assert.Equal(t, 0, m.SubscriptionCount())
}

func TestSubscriberPanicDoesNotAffectOthers(t *testing.T) {
	records := map[string]any{"a": map[string]any{"status": "closed"}}
	m := newTestManager(records)

	var secondCalled bool
	unsubA := m.Subscribe(query.Eq("status", "open"), func(e Event) {
		if e.Type == EventDelta {
			panic("boom")
		}
	})
	defer unsubA()
	unsubB := m.Subscribe(query.Eq("status", "open"), func(e Event) {
		if e.Type == EventDelta {
			secondCalled = true
		}
	})
	defer unsubB()

	assert.NotPanics(t, func() {
		records["b"] = map[string]any{"status": "open"}
		m.OnRecordAdded("b", records["b"])
	})
	assert.True(t, secondCalled)
}

func TestMultipleSubscribersShareOneStandingIndex(t *testing.T) {
	records := map[string]any{"a": map[string]any{"status": "open"}}
	m := newTestManager(records)

	count1 := 0
	count2 := 0
	unsub1 := m.Subscribe(query.Eq("status", "open"), func(e Event) {
		if e.Type == EventDelta {
			count1++
		}
	})
	defer unsub1()
	unsub2 := m.Subscribe(query.Eq("status", "open"), func(e Event) {
		if e.Type == EventDelta {
			count2++
		}
	})
	defer unsub2()

	assert.Equal(t, 1, m.SubscriptionCount())

	records["b"] = map[string]any{"status": "open"}
	m.OnRecordAdded("b", records["b"])
	assert.Equal(t, 1, count1)
	assert.Equal(t, 1, count2)
}
