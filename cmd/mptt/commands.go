package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/bluesky-social/mptt/models"
	"github.com/bluesky-social/mptt/nestedset"
	"github.com/bluesky-social/mptt/pkg/metrics"
	"github.com/bluesky-social/mptt/treeview"

	cli "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the mptt HTTP API daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "Specify the local IP/port to bind to",
			Value:   ":6680",
			EnvVars: []string{"MPTT_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3989",
			EnvVars: []string{"MPTT_METRICS_LISTEN"},
		},
		&cli.Float64Flag{
			Name:    "mutation-rate-limit",
			Usage:   "max mutations per second accepted by the API (0 for unlimited)",
			EnvVars: []string{"MPTT_MUTATION_RATE_LIMIT"},
		},
		&cli.DurationFlag{
			Name:    "check-interval",
			Usage:   "how often to validate the whole forest in the background (0 disables)",
			EnvVars: []string{"MPTT_CHECK_INTERVAL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		stopTracing, err := configOTEL("mptt")
		if err != nil {
			return err
		}
		defer stopTracing()

		engine, done, err := openEngine(cctx, true)
		if err != nil {
			return err
		}
		defer done()

		srv := NewServer(engine, Config{
			Logger: engine.Config().Logger,
			Bind:   cctx.String("bind"),

			MutationRateLimit: cctx.Float64("mutation-rate-limit"),
		})

		ctx, cancel := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		runtime.SetBlockProfileRate(10)
		runtime.SetMutexProfileFraction(10)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return metrics.RunServer(ctx, cancel, cctx.String("metrics-listen"))
		})
		g.Go(func() error {
			return srv.Run(ctx)
		})
		g.Go(func() error {
			return runAudit(ctx, engine, cctx.Duration("check-interval"), srv.logger)
		})
		return g.Wait()
	},
}

var showCmd = &cli.Command{
	Name:      "show",
	Usage:     "print trees, or the subtree under a node",
	ArgsUsage: "[node-id]",
	Flags: []cli.Flag{
		&cli.Int64SliceFlag{
			Name:  "tree",
			Usage: "only print these tree ids",
		},
	},
	Action: func(cctx *cli.Context) error {
		engine, done, err := openEngine(cctx, false)
		if err != nil {
			return err
		}
		defer done()

		var trees []*treeview.Node
		if cctx.Args().Present() {
			id, err := parseNodeID(cctx.Args().First())
			if err != nil {
				return err
			}
			trees, err = engine.DrilldownTree(cctx.Context, id)
			if err != nil {
				return err
			}
		} else {
			trees, err = engine.Forest(cctx.Context, cctx.Int64Slice("tree"))
			if err != nil {
				return err
			}
		}
		fmt.Print(treeview.Render(trees))
		return nil
	},
}

var insertCmd = &cli.Command{
	Name:      "insert",
	Usage:     "add a node as the last child of a parent, or as a new tree",
	ArgsUsage: "<name>",
	Flags: []cli.Flag{
		&cli.Int64Flag{
			Name:  "parent",
			Usage: "parent node id; omit to start a new tree",
		},
	},
	Action: func(cctx *cli.Context) error {
		engine, done, err := openEngine(cctx, false)
		if err != nil {
			return err
		}
		defer done()

		n := &models.Node{Name: cctx.Args().First()}
		if cctx.IsSet("parent") {
			n.ParentID = models.ID(cctx.Int64("parent"))
		}
		c, err := engine.Insert(cctx.Context, n)
		if err != nil {
			return err
		}
		fmt.Printf("%d\ttree=%d\t[%d,%d]\tlevel=%d\n", n.ID, c.TreeID, c.Left, c.Right, c.Level)
		return nil
	},
}

var deleteCmd = &cli.Command{
	Name:      "delete",
	Usage:     "remove a node and its whole subtree",
	ArgsUsage: "<node-id>",
	Action: func(cctx *cli.Context) error {
		id, err := parseNodeID(cctx.Args().First())
		if err != nil {
			return err
		}
		engine, done, err := openEngine(cctx, false)
		if err != nil {
			return err
		}
		defer done()
		return engine.Delete(cctx.Context, id)
	},
}

var moveCmd = &cli.Command{
	Name:      "move",
	Usage:     "relocate a node and its subtree",
	ArgsUsage: "<node-id> <inside|first-child|before|after|root> [anchor-id]",
	Action: func(cctx *cli.Context) error {
		args := cctx.Args()
		id, err := parseNodeID(args.Get(0))
		if err != nil {
			return err
		}
		pos, err := nestedset.ParsePosition(args.Get(1))
		if err != nil {
			return err
		}
		dest := nestedset.Destination{Position: pos}
		if pos != nestedset.PositionRoot {
			dest.Anchor, err = parseNodeID(args.Get(2))
			if err != nil {
				return fmt.Errorf("anchor: %w", err)
			}
		}

		engine, done, err := openEngine(cctx, false)
		if err != nil {
			return err
		}
		defer done()
		return engine.Move(cctx.Context, id, dest)
	},
}

var rebuildCmd = &cli.Command{
	Name:      "rebuild",
	Usage:     "recompute coordinates from parent links",
	ArgsUsage: "[tree-id...]",
	Action: func(cctx *cli.Context) error {
		trees, err := parseTreeIDs(cctx.Args().Slice())
		if err != nil {
			return err
		}
		engine, done, err := openEngine(cctx, false)
		if err != nil {
			return err
		}
		defer done()
		return rebuild(cctx.Context, engine, trees)
	},
}

var checkCmd = &cli.Command{
	Name:      "check",
	Usage:     "validate nested-set invariants and report every violation",
	ArgsUsage: "[tree-id...]",
	Action: func(cctx *cli.Context) error {
		trees, err := parseTreeIDs(cctx.Args().Slice())
		if err != nil {
			return err
		}
		engine, done, err := openEngine(cctx, false)
		if err != nil {
			return err
		}
		defer done()

		err = engine.Check(cctx.Context, trees...)
		if errors.Is(err, nestedset.ErrIntegrityViolation) {
			fmt.Fprintln(os.Stderr, err)
			return cli.Exit("forest is inconsistent", 2)
		}
		if err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

func rebuild(ctx context.Context, engine *nestedset.Engine, trees []int64) error {
	if len(trees) == 0 {
		return engine.RebuildAll(ctx)
	}
	for _, t := range trees {
		if err := engine.Rebuild(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func parseNodeID(s string) (models.NodeID, error) {
	if s == "" {
		return 0, fmt.Errorf("missing node id")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid node id: %q", s)
	}
	return models.NodeID(id), nil
}

func parseTreeIDs(args []string) ([]int64, error) {
	out := make([]int64, 0, len(args))
	for _, a := range args {
		t, err := strconv.ParseInt(a, 10, 64)
		if err != nil || t <= 0 {
			return nil, fmt.Errorf("invalid tree id: %q", a)
		}
		out = append(out, t)
	}
	return out, nil
}
