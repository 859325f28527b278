package rows

import (
	"goflare.io/bento/internal/ranking"
)

func index[T any](list []T, id func(T) string) map[string]T {
	m := make(map[string]T, len(list))
	for _, v := range list {
		m[id(v)] = v
	}
	return m
}

// Join resolves prices, names and avatars for each order item. A dangling
// menu item gives price 0 and no names; a dangling user gives no name.
func Join(items []OrderItemRow, menu []MenuItemRow, users []UserProfileRow, restaurants []RestaurantRow) []ranking.Row {
	menuByID := index(menu, func(m MenuItemRow) string { return m.ID })
	userByID := index(users, func(u UserProfileRow) string { return u.ID })
	restaurantByID := index(restaurants, func(r RestaurantRow) string { return r.ID })

	out := make([]ranking.Row, 0, len(items))
	for _, it := range items {
		row := ranking.Row{
			UserID:     it.UserID,
			MenuItemID: it.MenuItemID,
			OrderID:    it.OrderID,
		}
		if m, ok := menuByID[it.MenuItemID]; ok {
			row.Price = float64(m.Price)
			row.MenuItemName = m.Name
			row.RestaurantID = m.RestaurantID
			if r, ok := restaurantByID[m.RestaurantID]; ok {
				row.RestaurantName = r.Name
			}
		}
		if u, ok := userByID[it.UserID]; ok {
			row.UserName = u.Name
			row.AvatarURL = u.AvatarURL
		}
		out = append(out, row)
	}
	return out
}

// Rows joins the whole dataset.
func (ds *Dataset) Rows() []ranking.Row {
	return Join(ds.OrderItems, ds.MenuItems, ds.Users, ds.Restaurants)
}

// RestaurantStatsInput collects the closed orders of restaurantID, their
// items, the restaurant's menu and its ratings.
func (ds *Dataset) RestaurantStatsInput(restaurantID string) ranking.StatsInput {
	closed := make(map[string]struct{})
	for _, o := range ds.Orders {
		if o.RestaurantID == restaurantID && o.Status == StatusClosed {
			closed[o.ID] = struct{}{}
		}
	}

	var items []OrderItemRow
	for _, it := range ds.OrderItems {
		if _, ok := closed[it.OrderID]; ok {
			items = append(items, it)
		}
	}

	in := ranking.StatsInput{
		ClosedOrderCount: len(closed),
		Items:            Join(items, ds.MenuItems, nil, nil),
		Ratings:          make(map[string][]float64),
	}
	for _, m := range ds.MenuItems {
		if m.RestaurantID == restaurantID {
			in.Menu = append(in.Menu, ranking.MenuEntry{ID: m.ID, Name: m.Name, Price: float64(m.Price)})
		}
	}
	for _, r := range ds.Ratings {
		in.Ratings[r.MenuItemID] = append(in.Ratings[r.MenuItemID], r.Score)
	}
	return in
}
