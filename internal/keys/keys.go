// Package keys is the registry of every logical cache key the sync layer
// produces. Producers build keys here and the invalidation table consumes the
// same builders, so a key kind cannot exist without a known shape.
package keys

import "strings"

// Kind identifies a family of cache keys.
type Kind string

const (
	KindOrders          Kind = "orders"
	KindOrder           Kind = "order"
	KindRestaurants     Kind = "restaurants"
	KindRestaurantMenu  Kind = "restaurant_menu"
	KindRestaurantStats Kind = "restaurant_stats"
	KindUserStats       Kind = "user_stats"
	KindRankings        Kind = "top5_rankings"
	KindRatings         Kind = "ratings"
	KindUnknown         Kind = ""
)

// Kinds lists every registered kind.
func Kinds() []Kind {
	return []Kind{
		KindOrders,
		KindOrder,
		KindRestaurants,
		KindRestaurantMenu,
		KindRestaurantStats,
		KindUserStats,
		KindRankings,
		KindRatings,
	}
}

func Orders() string      { return "orders" }
func Restaurants() string { return "restaurants" }
func Rankings() string    { return "top5_rankings" }

func Order(id string) string { return "order_" + id }

func RestaurantMenu(id string) string { return "restaurant_" + id + "_menu" }

func RestaurantStats(id string) string { return "restaurant_" + id + "_stats" }

// UserStats keys the personal summary. Signed-out views share "anonymous".
func UserStats(userID string) string {
	if userID == "" {
		userID = "anonymous"
	}
	return "user_stats_" + userID
}

func Ratings(menuItemID string) string { return "ratings_" + menuItemID }

// Parse recovers the kind and entity id of a key built by this package.
func Parse(key string) (Kind, string) {
	switch {
	case key == Orders():
		return KindOrders, ""
	case key == Restaurants():
		return KindRestaurants, ""
	case key == Rankings():
		return KindRankings, ""
	case strings.HasPrefix(key, "user_stats_"):
		return KindUserStats, strings.TrimPrefix(key, "user_stats_")
	case strings.HasPrefix(key, "ratings_"):
		return KindRatings, strings.TrimPrefix(key, "ratings_")
	case strings.HasPrefix(key, "order_"):
		return KindOrder, strings.TrimPrefix(key, "order_")
	case strings.HasPrefix(key, "restaurant_") && strings.HasSuffix(key, "_menu"):
		return KindRestaurantMenu, strings.TrimSuffix(strings.TrimPrefix(key, "restaurant_"), "_menu")
	case strings.HasPrefix(key, "restaurant_") && strings.HasSuffix(key, "_stats"):
		return KindRestaurantStats, strings.TrimSuffix(strings.TrimPrefix(key, "restaurant_"), "_stats")
	}
	return KindUnknown, ""
}
