package policy

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/reprise/types"
)

// fakeSource is a minimal ServerSource for selector tests.
type fakeSource struct {
	mu      sync.Mutex
	servers []types.ServerDescription
	states  map[types.ServerID]types.Reachability
	changed chan struct{}
}

func newFakeSource(servers ...types.ServerDescription) *fakeSource {
	f := &fakeSource{
		states:  make(map[types.ServerID]types.Reachability),
		changed: make(chan struct{}),
	}
	for _, s := range servers {
		f.servers = append(f.servers, s)
		f.states[s.ID] = types.Reachable
	}

	return f
}

func (f *fakeSource) Servers() []types.ServerDescription {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]types.ServerDescription(nil), f.servers...)
}

func (f *fakeSource) ServerState(id types.ServerID) types.Reachability {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.states[id]
}

func (f *fakeSource) Changed() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.changed
}

func (f *fakeSource) set(id types.ServerID, r types.Reachability) {
	f.mu.Lock()
	f.states[id] = r
	close(f.changed)
	f.changed = make(chan struct{})
	f.mu.Unlock()
}

func (f *fakeSource) add(desc types.ServerDescription) {
	f.mu.Lock()
	f.servers = append(f.servers, desc)
	f.states[desc.ID] = types.Reachable
	close(f.changed)
	f.changed = make(chan struct{})
	f.mu.Unlock()
}

func primary(id string) types.ServerDescription {
	return types.ServerDescription{ID: types.ServerID(id), Type: types.ServerRSPrimary}
}

func secondary(id string, tags types.TagSet) types.ServerDescription {
	return types.ServerDescription{ID: types.ServerID(id), Type: types.ServerRSSecondary, Tags: tags}
}

func TestSelectorHonorsMode(t *testing.T) {
	src := newFakeSource(primary("p:1"), secondary("s:1", nil), secondary("s:2", nil))
	sel := NewSelector(src)
	ctx := t.Context()

	desc, err := sel.Select(ctx, types.ReadPreference{Mode: types.Primary})
	require.NoError(t, err)
	require.Equal(t, types.ServerID("p:1"), desc.ID)

	for range 20 {
		desc, err = sel.Select(ctx, types.ReadPreference{Mode: types.Secondary})
		require.NoError(t, err)
		require.Equal(t, types.ServerRSSecondary, desc.Type)
	}

	desc, err = sel.Select(ctx, types.ReadPreference{Mode: types.SecondaryPreferred})
	require.NoError(t, err)
	require.Equal(t, types.ServerRSSecondary, desc.Type)
}

func TestSelectorPreferredFallbacks(t *testing.T) {
	src := newFakeSource(primary("p:1"), secondary("s:1", nil))
	sel := NewSelector(src)
	ctx := t.Context()

	src.set("s:1", types.Unreachable)
	desc, err := sel.Select(ctx, types.ReadPreference{Mode: types.SecondaryPreferred})
	require.NoError(t, err)
	require.Equal(t, types.ServerID("p:1"), desc.ID)

	src.set("s:1", types.Reachable)
	src.set("p:1", types.Unreachable)
	desc, err = sel.Select(ctx, types.ReadPreference{Mode: types.PrimaryPreferred})
	require.NoError(t, err)
	require.Equal(t, types.ServerID("s:1"), desc.ID)
}

func TestSelectorTagSets(t *testing.T) {
	src := newFakeSource(
		primary("p:1"),
		secondary("east:1", types.TagSet{"dc": "east"}),
		secondary("west:1", types.TagSet{"dc": "west"}),
	)
	sel := NewSelector(src)

	rp := types.ReadPreference{
		Mode:    types.Secondary,
		TagSets: []types.TagSet{{"dc": "north"}, {"dc": "west"}},
	}
	for range 10 {
		desc, err := sel.Select(t.Context(), rp)
		require.NoError(t, err)
		require.Equal(t, types.ServerID("west:1"), desc.ID)
	}
}

func TestSelectorMongosServesAnyMode(t *testing.T) {
	src := newFakeSource(types.ServerDescription{ID: "router:1", Type: types.ServerMongos})
	sel := NewSelector(src)

	desc, err := sel.Select(t.Context(), types.ReadPreference{Mode: types.Secondary})
	require.NoError(t, err)
	require.Equal(t, types.ServerID("router:1"), desc.ID)
}

func TestSelectorLatencyWindow(t *testing.T) {
	fast := secondary("fast:1", nil)
	fast.RTT = 2 * time.Millisecond
	slow := secondary("slow:1", nil)
	slow.RTT = 200 * time.Millisecond

	sel := NewSelector(newFakeSource(fast, slow), WithLocalThreshold(15*time.Millisecond))
	for range 20 {
		desc, err := sel.Select(t.Context(), types.ReadPreference{Mode: types.Nearest})
		require.NoError(t, err)
		require.Equal(t, types.ServerID("fast:1"), desc.ID)
	}
}

func TestSelectorExclusionPrefersAlternative(t *testing.T) {
	src := newFakeSource(secondary("s:1", nil), secondary("s:2", nil))
	sel := NewSelector(src)

	for range 20 {
		desc, err := sel.Select(t.Context(), types.ReadPreference{Mode: types.Secondary}, "s:1")
		require.NoError(t, err)
		require.Equal(t, types.ServerID("s:2"), desc.ID)
	}
}

func TestSelectorExclusionFallsBackToSameServer(t *testing.T) {
	src := newFakeSource(primary("p:1"), secondary("s:1", nil))
	sel := NewSelector(src)

	desc, err := sel.Select(t.Context(), types.ReadPreference{Mode: types.Primary}, "p:1")
	require.NoError(t, err)
	require.Equal(t, types.ServerID("p:1"), desc.ID)
}

func TestSelectorExclusionFallsThroughPreferredTier(t *testing.T) {
	src := newFakeSource(primary("p:1"), secondary("s:1", nil), secondary("s:2", nil))
	sel := NewSelector(src)

	for range 20 {
		desc, err := sel.Select(t.Context(), types.ReadPreference{Mode: types.PrimaryPreferred}, "p:1")
		require.NoError(t, err)
		require.Equal(t, types.ServerRSSecondary, desc.Type)
	}

	// a lone failed secondary gives way to the primary
	src = newFakeSource(primary("p:1"), secondary("s:1", nil))
	sel = NewSelector(src)
	desc, err := sel.Select(t.Context(), types.ReadPreference{Mode: types.SecondaryPreferred}, "s:1")
	require.NoError(t, err)
	require.Equal(t, types.ServerID("p:1"), desc.ID)

	// a suspect preferred member also gives way
	src.set("s:1", types.Suspect)
	desc, err = sel.Select(t.Context(), types.ReadPreference{Mode: types.SecondaryPreferred})
	require.NoError(t, err)
	require.Equal(t, types.ServerID("p:1"), desc.ID)

	// the failed server is still used when nothing else is left
	src.set("p:1", types.Unreachable)
	desc, err = sel.Select(t.Context(), types.ReadPreference{Mode: types.SecondaryPreferred}, "s:1")
	require.NoError(t, err)
	require.Equal(t, types.ServerID("s:1"), desc.ID)
}

func TestSelectorDeprioritizesSuspect(t *testing.T) {
	src := newFakeSource(secondary("s:1", nil), secondary("s:2", nil))
	src.set("s:1", types.Suspect)
	sel := NewSelector(src)

	for range 20 {
		desc, err := sel.Select(t.Context(), types.ReadPreference{Mode: types.Secondary})
		require.NoError(t, err)
		require.Equal(t, types.ServerID("s:2"), desc.ID)
	}

	// suspect is still better than nothing
	src.set("s:2", types.Unreachable)
	desc, err := sel.Select(t.Context(), types.ReadPreference{Mode: types.Secondary})
	require.NoError(t, err)
	require.Equal(t, types.ServerID("s:1"), desc.ID)
}

func TestSelectorTimeout(t *testing.T) {
	src := newFakeSource(primary("p:1"))
	sel := NewSelector(src, WithSelectionTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := sel.Select(t.Context(), types.ReadPreference{Mode: types.Secondary})
	require.ErrorIs(t, err, types.ErrNoEligibleServer)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSelectorBoundedByContext(t *testing.T) {
	src := newFakeSource()
	sel := NewSelector(src, WithSelectionTimeout(time.Hour))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err := sel.Select(ctx, types.ReadPreference{Mode: types.Nearest})
	require.ErrorIs(t, err, types.ErrNoEligibleServer)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSelectorWaitsForTopologyChange(t *testing.T) {
	src := newFakeSource()
	sel := NewSelector(src, WithSelectionTimeout(5*time.Second))

	go func() {
		time.Sleep(20 * time.Millisecond)
		src.add(secondary("late:1", nil))
	}()

	desc, err := sel.Select(t.Context(), types.ReadPreference{Mode: types.SecondaryPreferred})
	require.NoError(t, err)
	require.Equal(t, types.ServerID("late:1"), desc.ID)
}

func TestSelectorRejectsInvalidReadPreference(t *testing.T) {
	sel := NewSelector(newFakeSource(primary("p:1")))

	_, err := sel.Select(t.Context(), types.ReadPreference{
		Mode:    types.Primary,
		TagSets: []types.TagSet{{"dc": "east"}},
	})
	require.ErrorIs(t, err, types.ErrInvalidReadPreference)
}

func TestSelectorSkipsUnknownAndArbiters(t *testing.T) {
	src := newFakeSource(
		types.ServerDescription{ID: "arb:1", Type: types.ServerRSArbiter},
		types.ServerDescription{ID: "unk:1", Type: types.ServerUnknown},
	)
	sel := NewSelector(src, WithSelectionTimeout(10*time.Millisecond))

	_, err := sel.Select(t.Context(), types.ReadPreference{Mode: types.Nearest})
	require.ErrorIs(t, err, types.ErrNoEligibleServer)
}
