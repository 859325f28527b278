package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	rows := []Row{
		{UserID: "u1", OrderID: "o1", MenuItemID: "m1", MenuItemName: "Pork chop", RestaurantID: "r1", RestaurantName: "Hall", Price: 100},
		{UserID: "u1", OrderID: "o1", MenuItemID: "m2", MenuItemName: "Chicken", RestaurantID: "r1", RestaurantName: "Hall", Price: 90},
		{UserID: "u1", OrderID: "o2", MenuItemID: "m3", MenuItemName: "Fish", RestaurantID: "r2", RestaurantName: "Dock", Price: 110},
		{UserID: "u1", OrderID: "o2", MenuItemID: "m2", MenuItemName: "Chicken", RestaurantID: "r1", RestaurantName: "Hall", Price: 90},
		{UserID: "u1", OrderID: "o3", MenuItemID: "m4", MenuItemName: "Curry", RestaurantID: "r3", RestaurantName: "Spice", Price: 95},
		{UserID: "u2", OrderID: "o3", MenuItemID: "m1", MenuItemName: "Pork chop", RestaurantID: "r1", Price: 100},
		{UserID: "u1", OrderID: "o4", MenuItemID: "gone"},
	}

	s := Summarize(rows, "u1", 3)
	assert.Equal(t, 4, s.OrderCount)
	assert.Equal(t, 485.0, s.TotalSpending)
	assert.Equal(t, []Count{
		{ID: "m2", Name: "Chicken", Count: 2},
		{ID: "m1", Name: "Pork chop", Count: 1},
		{ID: "m3", Name: "Fish", Count: 1},
	}, s.TopItems)
	assert.Equal(t, []Count{
		{ID: "r1", Name: "Hall", Count: 3},
		{ID: "r2", Name: "Dock", Count: 1},
		{ID: "r3", Name: "Spice", Count: 1},
	}, s.TopRestaurants)
}

func TestSummarizeUnknownUser(t *testing.T) {
	s := Summarize([]Row{{UserID: "u1", OrderID: "o1", Price: 10}}, "nobody", 3)
	assert.Zero(t, s.OrderCount)
	assert.Zero(t, s.TotalSpending)
	assert.Empty(t, s.TopItems)
	assert.Empty(t, s.TopRestaurants)
}

func TestRestaurantStats(t *testing.T) {
	in := StatsInput{
		ClosedOrderCount: 2,
		Items: []Row{
			{MenuItemID: "m1", Price: 100},
			{MenuItemID: "m1", Price: 100},
			{MenuItemID: "m2", Price: 60},
			{MenuItemID: "retired"},
		},
		Menu: []MenuEntry{
			{ID: "m1", Name: "Pork chop", Price: 100},
			{ID: "m2", Name: "Tofu", Price: 60},
			{ID: "m3", Name: "Soup", Price: 30},
		},
		Ratings: map[string][]float64{"m1": {4, 5, 4}},
	}

	out := RestaurantStats(in)
	assert.Equal(t, 2, out.OrderCount)
	assert.Equal(t, 260.0, out.TotalSpending)
	assert.Len(t, out.Items, 3)
	assert.Equal(t, ItemStats{MenuEntry: in.Menu[0], OrderCount: 2, TotalRevenue: 200, AverageRating: 4.3}, out.Items[0])
	assert.Equal(t, ItemStats{MenuEntry: in.Menu[1], OrderCount: 1, TotalRevenue: 60}, out.Items[1])
	assert.Equal(t, ItemStats{MenuEntry: in.Menu[2]}, out.Items[2])
}
