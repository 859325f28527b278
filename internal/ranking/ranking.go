// Package ranking aggregates joined order-item rows into per-user totals,
// tie-grouped leaderboards, personal summaries and restaurant statistics.
//
// Every function is total over its input: a row with missing references
// contributes zero price and empty names instead of failing.
package ranking

import (
	"math"
	"sort"
)

// UnknownName 無名稱使用者的顯示名稱
const UnknownName = "Unknown"

// Row 已完成關聯的訂單明細
type Row struct {
	UserID     string  `json:"user_id"`
	MenuItemID string  `json:"menu_item_id"`
	OrderID    string  `json:"order_id"`
	Price      float64 `json:"price"`

	UserName       string `json:"user_name,omitempty"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	MenuItemName   string `json:"menu_item_name,omitempty"`
	RestaurantID   string `json:"restaurant_id,omitempty"`
	RestaurantName string `json:"restaurant_name,omitempty"`
}

// UserAggregate 單一使用者的累計值
type UserAggregate struct {
	UserID              string  `json:"user_id"`
	UserName            string  `json:"user_name"`
	AvatarURL           string  `json:"avatar_url,omitempty"`
	TotalSpending       float64 `json:"total_spending"`
	UniqueMenuItemCount int     `json:"unique_menu_item_count"`
	UniqueOrderCount    int     `json:"unique_order_count"`
}

// Metric selects the value a leaderboard ranks by.
type Metric func(UserAggregate) float64

var (
	BySpending      Metric = func(a UserAggregate) float64 { return a.TotalSpending }
	ByVariety       Metric = func(a UserAggregate) float64 { return float64(a.UniqueMenuItemCount) }
	ByParticipation Metric = func(a UserAggregate) float64 { return float64(a.UniqueOrderCount) }
)

// Member 排行榜群組成員
type Member struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Group 同值的所有使用者佔一個名次
type Group struct {
	Value float64  `json:"value"`
	Users []Member `json:"users"`
}

// Leaderboard 三個排行榜
type Leaderboard struct {
	TopSpenders     []Group `json:"topSpenders"`
	TopVariety      []Group `json:"topVariety"`
	TopParticipants []Group `json:"topParticipants"`
}

type accumulator struct {
	agg    UserAggregate
	items  map[string]struct{}
	orders map[string]struct{}
}

// Aggregate groups rows by user in first-seen order. Rows without a user are skipped.
func Aggregate(rows []Row) []UserAggregate {
	index := make(map[string]*accumulator)
	var order []*accumulator

	for _, r := range rows {
		if r.UserID == "" {
			continue
		}
		acc, ok := index[r.UserID]
		if !ok {
			acc = &accumulator{
				agg:    UserAggregate{UserID: r.UserID, UserName: r.UserName, AvatarURL: r.AvatarURL},
				items:  make(map[string]struct{}),
				orders: make(map[string]struct{}),
			}
			index[r.UserID] = acc
			order = append(order, acc)
		}
		acc.agg.TotalSpending += price(r.Price)
		if r.MenuItemID != "" {
			acc.items[r.MenuItemID] = struct{}{}
		}
		if r.OrderID != "" {
			acc.orders[r.OrderID] = struct{}{}
		}
	}

	out := make([]UserAggregate, 0, len(order))
	for _, acc := range order {
		acc.agg.UniqueMenuItemCount = len(acc.items)
		acc.agg.UniqueOrderCount = len(acc.orders)
		out = append(out, acc.agg)
	}
	return out
}

// TopGroups keeps the n highest distinct metric values. Users sharing a value
// exactly form one group, listed in the order they appear in aggs.
func TopGroups(aggs []UserAggregate, metric Metric, n int) []Group {
	if n <= 0 {
		return []Group{}
	}

	byValue := make(map[float64]int)
	var groups []Group
	for _, a := range aggs {
		v := metric(a)
		i, ok := byValue[v]
		if !ok {
			i = len(groups)
			byValue[v] = i
			groups = append(groups, Group{Value: v})
		}
		name := a.UserName
		if name == "" {
			name = UnknownName
		}
		groups[i].Users = append(groups[i].Users, Member{UserID: a.UserID, UserName: name, AvatarURL: a.AvatarURL})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Value > groups[j].Value
	})
	if len(groups) > n {
		groups = groups[:n]
	}
	if groups == nil {
		groups = []Group{}
	}
	return groups
}

// BuildLeaderboard 依消費、品項種類、參與訂單數產生前 n 名
func BuildLeaderboard(rows []Row, n int) Leaderboard {
	aggs := Aggregate(rows)
	return Leaderboard{
		TopSpenders:     TopGroups(aggs, BySpending, n),
		TopVariety:      TopGroups(aggs, ByVariety, n),
		TopParticipants: TopGroups(aggs, ByParticipation, n),
	}
}

// Mean is the full-precision average of scores, 0 when there are none.
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// AverageRating 顯示用的平均評分，四捨五入到小數一位
func AverageRating(scores []float64) float64 {
	return RoundTenth(Mean(scores))
}

// RoundTenth rounds x to one decimal, halves toward positive infinity.
func RoundTenth(x float64) float64 {
	return math.Floor(x*10+0.5) / 10
}

func price(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return p
}
