package ranking

import "sort"

// Count 出現次數統計
type Count struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary 個人統計
type Summary struct {
	OrderCount     int     `json:"order_count"`
	TotalSpending  float64 `json:"total_spending"`
	TopItems       []Count `json:"top_items"`
	TopRestaurants []Count `json:"top_restaurants"`
}

// Summarize builds the personal summary of userID from rows. Every row counts
// once. Rows without a restaurant do not count toward TopRestaurants.
func Summarize(rows []Row, userID string, n int) Summary {
	orders := make(map[string]struct{})
	items := newCounter()
	restaurants := newCounter()
	var s Summary

	for _, r := range rows {
		if r.UserID != userID {
			continue
		}
		orders[r.OrderID] = struct{}{}
		s.TotalSpending += price(r.Price)
		items.add(r.MenuItemID, r.MenuItemName)
		if r.RestaurantID != "" {
			restaurants.add(r.RestaurantID, r.RestaurantName)
		}
	}

	s.OrderCount = len(orders)
	s.TopItems = items.top(n)
	s.TopRestaurants = restaurants.top(n)
	return s
}

type counter struct {
	index map[string]int
	list  []Count
}

func newCounter() *counter {
	return &counter{index: make(map[string]int)}
}

func (c *counter) add(id, name string) {
	i, ok := c.index[id]
	if !ok {
		i = len(c.list)
		c.index[id] = i
		c.list = append(c.list, Count{ID: id, Name: name})
	}
	c.list[i].Count++
}

// top returns up to n entries by count descending; ties keep first-seen order.
func (c *counter) top(n int) []Count {
	out := append([]Count{}, c.list...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
