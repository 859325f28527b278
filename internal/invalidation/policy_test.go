package invalidation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/bento/internal/keys"
)

type fakeStore struct {
	mu      sync.Mutex
	removed []string
}

func (f *fakeStore) Remove(_ context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
}

func fullEvent(a Action) Event {
	return Event{Action: a, OrderID: "o1", RestaurantID: "r1", UserID: "u1", MenuItemID: "m1"}
}

func TestEveryKeyKindIsInvalidatedBySomeAction(t *testing.T) {
	p := New(&fakeStore{}, nil, nil)

	covered := map[keys.Kind]bool{}
	for _, a := range Actions() {
		for _, k := range p.Keys(fullEvent(a)) {
			kind, _ := keys.Parse(k)
			require.NotEqual(t, keys.KindUnknown, kind, "action %s produced unregistered key %q", a, k)
			covered[kind] = true
		}
	}
	for _, kind := range keys.Kinds() {
		assert.True(t, covered[kind], "no action invalidates %q", kind)
	}
}

func TestOrderItemAddedDropsDependentViews(t *testing.T) {
	p := New(&fakeStore{}, nil, nil)
	got := p.Keys(Event{Action: OrderItemAdded, OrderID: "20250312", UserID: "u1", RestaurantID: "r9"})
	assert.ElementsMatch(t, []string{
		"orders",
		"order_20250312",
		"user_stats_u1",
		"restaurant_r9_stats",
		"top5_rankings",
	}, got)
}

func TestMissingIdsSkipKeys(t *testing.T) {
	p := New(&fakeStore{}, nil, nil)
	got := p.Keys(Event{Action: OrderClosed, OrderID: "o1"})
	assert.ElementsMatch(t, []string{"orders", "order_o1", "top5_rankings"}, got)
}

func TestKeysDeduplicatesAcrossEvents(t *testing.T) {
	p := New(&fakeStore{}, nil, nil)
	got := p.Keys(
		Event{Action: OrderCreated},
		Event{Action: OrderItemAdded, OrderID: "o1"},
	)
	assert.ElementsMatch(t, []string{"orders", "top5_rankings", "order_o1"}, got)
}

func TestUnknownActionIsIgnored(t *testing.T) {
	p := New(&fakeStore{}, nil, nil)
	assert.Empty(t, p.Keys(Event{Action: "order.teleported"}))
}

func TestApplyRemovesFromStore(t *testing.T) {
	fs := &fakeStore{}
	p := New(fs, nil, nil)

	dropped := p.Apply(context.Background(), Event{Action: RatingSubmitted, MenuItemID: "m1", RestaurantID: "r1"})
	assert.ElementsMatch(t, []string{"ratings_m1", "restaurant_r1_stats"}, dropped)
	assert.ElementsMatch(t, dropped, fs.removed)
	assert.EqualValues(t, 2, p.metrics.Invalidated.Load())
}
