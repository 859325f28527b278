// Package rows holds the row shapes owned by the remote data store and joins
// them into ranking input.
package rows

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Price is a money amount. The remote store sends numeric columns either as
// JSON numbers or as strings; anything unparsable reads as 0.
type Price float64

// UnmarshalJSON implements json.Unmarshaler.
func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*p = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*p = 0
		return nil
	}
	*p = Price(f)
	return nil
}

// Order statuses.
const (
	StatusOpen   = "open"
	StatusClosed = "closed"
)

// OrderRow 團購訂單
type OrderRow struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurant_id"`
	Status       string    `json:"status"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// OrderItemRow 訂單中的一筆點餐
type OrderItemRow struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	MenuItemID string `json:"menu_item_id"`
	Note       string `json:"note,omitempty"`
}

// MenuItemRow 菜單品項
type MenuItemRow struct {
	ID           string `json:"id"`
	RestaurantID string `json:"restaurant_id"`
	Name         string `json:"name"`
	Price        Price  `json:"price"`
}

// RestaurantRow 餐廳
type RestaurantRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserProfileRow 使用者資料
type UserProfileRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// RatingRow 品項評分
type RatingRow struct {
	MenuItemID string  `json:"menu_item_id"`
	UserID     string  `json:"user_id"`
	Score      float64 `json:"score"`
}

// Dataset is everything the ranking engine may need, as loaded from a file or the remote store.
type Dataset struct {
	Orders      []OrderRow       `json:"orders"`
	OrderItems  []OrderItemRow   `json:"order_items"`
	MenuItems   []MenuItemRow    `json:"menu_items"`
	Restaurants []RestaurantRow  `json:"restaurants"`
	Users       []UserProfileRow `json:"users"`
	Ratings     []RatingRow      `json:"ratings"`
}

// Decode reads a Dataset from JSON.
func Decode(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}
