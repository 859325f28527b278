package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/bento/internal/ranking"
)

const dataset = `{
  "orders": [{"id": "o1", "restaurant_id": "r1", "status": "closed"}],
  "order_items": [
    {"id": "i1", "order_id": "o1", "user_id": "u1", "menu_item_id": "m1"},
    {"id": "i2", "order_id": "o1", "user_id": "u2", "menu_item_id": "m1"},
    {"id": "i3", "order_id": "o1", "user_id": "u3", "menu_item_id": "m2"}
  ],
  "menu_items": [
    {"id": "m1", "restaurant_id": "r1", "name": "Pork chop", "price": 100},
    {"id": "m2", "restaurant_id": "r1", "name": "Tofu", "price": 60}
  ],
  "restaurants": [{"id": "r1", "name": "Hall"}],
  "users": [{"id": "u1", "name": "Amy"}, {"id": "u2", "name": "Ben"}],
  "ratings": [{"menu_item_id": "m1", "user_id": "u1", "score": 4}, {"menu_item_id": "m1", "user_id": "u2", "score": 5}]
}`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.json")
	require.NoError(t, os.WriteFile(path, []byte(dataset), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp(zap.NewNop())
	app.Writer = &out
	err := app.Run(append([]string{"bento"}, args...))
	return out.String(), err
}

func TestLeaderboardCommand(t *testing.T) {
	out, err := run(t, "leaderboard", "--input", writeDataset(t))
	require.NoError(t, err)

	var board ranking.Leaderboard
	require.NoError(t, json.Unmarshal([]byte(out), &board))
	require.Len(t, board.TopSpenders, 2)
	assert.Equal(t, 100.0, board.TopSpenders[0].Value)
	assert.Equal(t, []string{"Amy", "Ben"}, []string{board.TopSpenders[0].Users[0].UserName, board.TopSpenders[0].Users[1].UserName})
	assert.Equal(t, ranking.UnknownName, board.TopSpenders[1].Users[0].UserName)
}

func TestSummaryCommand(t *testing.T) {
	out, err := run(t, "summary", "--input", writeDataset(t), "--user", "u1")
	require.NoError(t, err)

	var s ranking.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 1, s.OrderCount)
	assert.Equal(t, 100.0, s.TotalSpending)
	assert.Equal(t, "Hall", s.TopRestaurants[0].Name)
}

func TestRestaurantStatsCommand(t *testing.T) {
	out, err := run(t, "restaurant-stats", "--input", writeDataset(t), "--restaurant", "r1")
	require.NoError(t, err)

	var s ranking.RestaurantSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 1, s.OrderCount)
	assert.Equal(t, 260.0, s.TotalSpending)
	assert.Equal(t, 4.5, s.Items[0].AverageRating)
}

func TestMissingFlags(t *testing.T) {
	_, err := run(t, "summary", "--input", writeDataset(t))
	assert.ErrorIs(t, err, errMissingFlag)

	_, err = run(t, "leaderboard")
	assert.ErrorIs(t, err, errMissingFlag)
}

func TestGetCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/restaurants", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"r1","name":"Hall"}]`))
	}))
	t.Cleanup(ts.Close)

	out, err := run(t, "get", "--base", ts.URL, "--resource", "restaurants", "--path", "/api/restaurants")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Hall"`)
}
