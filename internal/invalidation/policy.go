// Package invalidation maps completed mutations to the cache keys that now
// hold stale data. Dropping a key is eventual: open views keep what they show
// until they refetch or remount.
package invalidation

import (
	"context"

	"go.uber.org/zap"

	"goflare.io/bento/internal/keys"
	"goflare.io/bento/internal/models"
)

// Action names a server-side mutation.
type Action string

const (
	OrderCreated      Action = "order.created"
	OrderClosed       Action = "order.closed"
	OrderItemAdded    Action = "order_item.added"
	OrderItemDeleted  Action = "order_item.deleted"
	RestaurantCreated Action = "restaurant.created"
	RestaurantUpdated Action = "restaurant.updated"
	RestaurantDeleted Action = "restaurant.deleted"
	MenuUpdated       Action = "menu.updated"
	RatingSubmitted   Action = "rating.submitted"
)

// Event is one completed action with the ids the affected keys are built from.
type Event struct {
	Action       Action
	OrderID      string
	RestaurantID string
	UserID       string
	MenuItemID   string
}

// Remover drops cache entries.
type Remover interface {
	Remove(ctx context.Context, key string)
}

type rule func(Event) []string

// table is the whole policy. An empty id skips the key that needs it.
var table = map[Action]rule{
	OrderCreated: func(e Event) []string {
		return compact(keys.Orders(), keys.Rankings())
	},
	OrderClosed: func(e Event) []string {
		return compact(
			keys.Orders(),
			ifSet(e.OrderID, keys.Order),
			ifSet(e.RestaurantID, keys.RestaurantStats),
			keys.Rankings(),
		)
	},
	OrderItemAdded:   orderItemChanged,
	OrderItemDeleted: orderItemChanged,
	RestaurantCreated: func(e Event) []string {
		return compact(keys.Restaurants())
	},
	RestaurantUpdated: func(e Event) []string {
		return compact(
			keys.Restaurants(),
			ifSet(e.RestaurantID, keys.RestaurantMenu),
			ifSet(e.RestaurantID, keys.RestaurantStats),
		)
	},
	RestaurantDeleted: func(e Event) []string {
		return compact(
			keys.Restaurants(),
			ifSet(e.RestaurantID, keys.RestaurantMenu),
			ifSet(e.RestaurantID, keys.RestaurantStats),
			keys.Orders(),
			keys.Rankings(),
		)
	},
	MenuUpdated: func(e Event) []string {
		return compact(
			ifSet(e.RestaurantID, keys.RestaurantMenu),
			ifSet(e.RestaurantID, keys.RestaurantStats),
		)
	},
	RatingSubmitted: func(e Event) []string {
		return compact(
			ifSet(e.MenuItemID, keys.Ratings),
			ifSet(e.RestaurantID, keys.RestaurantStats),
		)
	},
}

func orderItemChanged(e Event) []string {
	return compact(
		keys.Orders(),
		ifSet(e.OrderID, keys.Order),
		ifSet(e.UserID, keys.UserStats),
		ifSet(e.RestaurantID, keys.RestaurantStats),
		keys.Rankings(),
	)
}

func ifSet(id string, build func(string) string) string {
	if id == "" {
		return ""
	}
	return build(id)
}

func compact(ks ...string) []string {
	out := ks[:0]
	for _, k := range ks {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Actions lists every action in the table.
func Actions() []Action {
	out := make([]Action, 0, len(table))
	for a := range table {
		out = append(out, a)
	}
	return out
}

// Policy applies the table to a store.
type Policy struct {
	store   Remover
	logger  *zap.Logger
	metrics *models.Metrics
}

// New creates a Policy. metrics may be nil.
func New(store Remover, logger *zap.Logger, metrics *models.Metrics) *Policy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = models.NewMetrics()
	}
	return &Policy{store: store, logger: logger, metrics: metrics}
}

// Keys returns the keys e invalidates, without duplicates.
func (p *Policy) Keys(events ...Event) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range events {
		r, ok := table[e.Action]
		if !ok {
			p.logger.Warn("No invalidation rule for action", zap.String("action", string(e.Action)))
			continue
		}
		for _, k := range r(e) {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// Apply drops every key the events invalidate. It does not wait for any view to refetch.
func (p *Policy) Apply(ctx context.Context, events ...Event) []string {
	dropped := p.Keys(events...)
	for _, k := range dropped {
		p.store.Remove(ctx, k)
	}
	p.metrics.Invalidated.Add(int64(len(dropped)))
	if len(dropped) > 0 {
		p.logger.Debug("Invalidated cache keys", zap.Strings("keys", dropped))
	}
	return dropped
}
