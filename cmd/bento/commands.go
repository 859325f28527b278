package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"goflare.io/bento"
	"goflare.io/bento/internal/config"
	"goflare.io/bento/internal/ranking"
	"goflare.io/bento/internal/remote"
	"goflare.io/bento/internal/rotation"
	"goflare.io/bento/internal/rows"
)

var errMissingFlag = errors.New("missing required flag")

var inputFlag = cli.StringFlag{
	Name:  "input, i",
	Usage: "JSON file with orders, order_items, menu_items, restaurants, users and ratings",
}

func loadDataset(c *cli.Context) (*rows.Dataset, error) {
	path := c.String("input")
	if path == "" {
		return nil, fmt.Errorf("%w: --input", errMissingFlag)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	ds, err := rows.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return ds, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func leaderboardCommand(logger *zap.Logger) cli.Command {
	return cli.Command{
		Name:  "leaderboard",
		Usage: "print top spenders, top variety and top participants",
		Flags: []cli.Flag{
			inputFlag,
			cli.IntFlag{
				Name:  "size",
				Usage: "number of distinct values per board (default from BENTO_LEADERBOARD_SIZE or 5)",
			},
			cli.DurationFlag{
				Name:  "watch",
				Usage: "rotate through tied members for this long",
			},
		},
		Action: func(c *cli.Context) error {
			opts := []config.Option{config.FromEnv()}
			if n := c.Int("size"); n != 0 {
				opts = append(opts, config.WithLeaderboardSize(n))
			}
			cfg, err := config.NewConfig(opts...)
			if err != nil {
				return err
			}

			ds, err := loadDataset(c)
			if err != nil {
				return err
			}
			board := ranking.BuildLeaderboard(ds.Rows(), cfg.Ranking.LeaderboardSize)
			if err := printJSON(c.App.Writer, board); err != nil {
				return err
			}

			if d := c.Duration("watch"); d > 0 {
				return watch(c.App.Writer, board.TopSpenders, cfg.Rotation, d, logger)
			}
			return nil
		},
	}
}

// watch shows the rotating member of every tied group until d elapses or the
// process is interrupted.
func watch(w io.Writer, groups []ranking.Group, rc config.RotationConfig, d time.Duration, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, d)
	defer cancelTimeout()

	var mu sync.Mutex
	var presenters []*rotation.Presenter
	for rank, g := range groups {
		if len(g.Users) < 2 {
			continue
		}
		p, err := rotation.NewPresenter(g, clock.New(), logger, rotation.WithConfig(rc))
		if err != nil {
			return err
		}
		rank := rank + 1
		p.Start(ctx, func(st rotation.State, m ranking.Member) {
			if st.Transitioning {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(w, "#%d %v: %s\n", rank, g.Value, m.UserName)
		})
		presenters = append(presenters, p)
	}

	<-ctx.Done()
	for _, p := range presenters {
		p.Stop()
	}
	return nil
}

func summaryCommand() cli.Command {
	return cli.Command{
		Name:  "summary",
		Usage: "print one user's order count, spending, top items and top restaurants",
		Flags: []cli.Flag{
			inputFlag,
			cli.StringFlag{Name: "user, u", Usage: "user id"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.NewConfig(config.FromEnv())
			if err != nil {
				return err
			}
			user := c.String("user")
			if user == "" {
				return fmt.Errorf("%w: --user", errMissingFlag)
			}
			ds, err := loadDataset(c)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, ranking.Summarize(ds.Rows(), user, cfg.Ranking.SummarySize))
		},
	}
}

func restaurantStatsCommand() cli.Command {
	return cli.Command{
		Name:  "restaurant-stats",
		Usage: "print closed-order count, revenue and ratings of a restaurant's menu",
		Flags: []cli.Flag{
			inputFlag,
			cli.StringFlag{Name: "restaurant, r", Usage: "restaurant id"},
		},
		Action: func(c *cli.Context) error {
			id := c.String("restaurant")
			if id == "" {
				return fmt.Errorf("%w: --restaurant", errMissingFlag)
			}
			ds, err := loadDataset(c)
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, ranking.RestaurantStats(ds.RestaurantStatsInput(id)))
		},
	}
}

func getCommand(logger *zap.Logger) cli.Command {
	return cli.Command{
		Name:  "get",
		Usage: "cache-first GET: print the cached value, then the fresh one",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "base", Usage: "API base URL", EnvVar: "BENTO_API_BASE"},
			cli.StringFlag{Name: "resource", Usage: "cache key, e.g. orders or restaurant_<id>_menu"},
			cli.StringFlag{Name: "path", Usage: "API path, e.g. /api/orders"},
			cli.DurationFlag{Name: "timeout", Value: 10 * time.Second, Usage: "request timeout"},
		},
		Action: func(c *cli.Context) error {
			base, key, path := c.String("base"), c.String("resource"), c.String("path")
			if base == "" || key == "" || path == "" {
				return fmt.Errorf("%w: --base, --resource and --path", errMissingFlag)
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
			defer cancel()

			b, err := bento.New(ctx, bento.FromEnv(), bento.WithLogger(logger))
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			client := remote.NewClient(base, logger, remote.WithTimeout(c.Duration("timeout")))
			defer func() { _ = client.Close() }()

			var mu sync.Mutex
			var printErr error
			sub := bento.Subscribe(ctx, b, key, remote.FetchFunc[json.RawMessage](client, path),
				func(st bento.State[json.RawMessage]) {
					if st.Loading || !st.HasData {
						return
					}
					mu.Lock()
					defer mu.Unlock()
					if err := printJSON(c.App.Writer, st.Data); err != nil && printErr == nil {
						printErr = err
					}
				})
			sub.Wait()
			sub.Close()

			if err := sub.State().Err; err != nil {
				return err
			}
			return printErr
		},
	}
}
