package ranking

// MenuEntry 餐廳菜單品項
type MenuEntry struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// StatsInput 餐廳統計所需的資料
type StatsInput struct {
	// ClosedOrderCount is the number of closed orders of the restaurant.
	ClosedOrderCount int
	// Items are the order-item rows of those closed orders.
	Items   []Row
	Menu    []MenuEntry
	Ratings map[string][]float64
}

// ItemStats 單一品項的統計
type ItemStats struct {
	MenuEntry
	OrderCount    int     `json:"order_count"`
	TotalRevenue  float64 `json:"total_revenue"`
	AverageRating float64 `json:"average_rating"`
}

// RestaurantSummary 餐廳統計
type RestaurantSummary struct {
	OrderCount    int         `json:"order_count"`
	TotalSpending float64     `json:"total_spending"`
	Items         []ItemStats `json:"items"`
}

// RestaurantStats computes order count, revenue and ratings per menu item, in menu order.
func RestaurantStats(in StatsInput) RestaurantSummary {
	type tally struct {
		count int
		total float64
	}
	tallies := make(map[string]*tally)

	out := RestaurantSummary{OrderCount: in.ClosedOrderCount, Items: make([]ItemStats, 0, len(in.Menu))}
	for _, r := range in.Items {
		p := price(r.Price)
		out.TotalSpending += p
		t, ok := tallies[r.MenuItemID]
		if !ok {
			t = &tally{}
			tallies[r.MenuItemID] = t
		}
		t.count++
		t.total += p
	}

	for _, m := range in.Menu {
		st := ItemStats{MenuEntry: m, AverageRating: AverageRating(in.Ratings[m.ID])}
		if t, ok := tallies[m.ID]; ok {
			st.OrderCount = t.count
			st.TotalRevenue = t.total
		}
		out.Items = append(out.Items, st)
	}
	return out
}
