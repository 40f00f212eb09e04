package main

import (
	"fmt"

	"github.com/bluesky-social/mptt/models"

	"github.com/brianvoe/gofakeit/v6"
	cli "github.com/urfave/cli/v2"
)

var seedCmd = &cli.Command{
	Name:  "seed",
	Usage: "load randomly shaped trees with fake names, for demos and load tests",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "trees",
			Usage: "number of trees to create",
			Value: 3,
		},
		&cli.IntFlag{
			Name:  "depth",
			Usage: "maximum depth below each root",
			Value: 3,
		},
		&cli.IntFlag{
			Name:  "fanout",
			Usage: "maximum children per node",
			Value: 4,
		},
		&cli.Int64Flag{
			Name:  "parent",
			Usage: "graft the trees under this node instead of adding new trees",
		},
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "random seed; 0 picks one",
		},
	},
	Action: func(cctx *cli.Context) error {
		engine, done, err := openEngine(cctx, false)
		if err != nil {
			return err
		}
		defer done()

		faker := gofakeit.New(cctx.Int64("seed"))
		drafts := randomForest(faker, cctx.Int("trees"), cctx.Int("depth"), cctx.Int("fanout"))

		var parent *models.NodeID
		if cctx.IsSet("parent") {
			parent = models.ID(cctx.Int64("parent"))
		}
		if err := engine.InsertTree(cctx.Context, parent, drafts...); err != nil {
			return err
		}

		total := int64(0)
		for _, d := range drafts {
			total += d.Count()
		}
		fmt.Printf("created %d nodes in %d trees\n", total, len(drafts))
		return nil
	},
}

func randomForest(f *gofakeit.Faker, trees, depth, fanout int) []*models.DraftTree {
	out := make([]*models.DraftTree, trees)
	for i := range out {
		out[i] = randomTree(f, depth, fanout)
	}
	return out
}

func randomTree(f *gofakeit.Faker, depth, fanout int) *models.DraftTree {
	d := &models.DraftTree{Node: &models.Node{Name: f.Noun()}}
	if depth <= 0 || fanout <= 0 {
		return d
	}
	for range f.IntRange(0, fanout) {
		d.Children = append(d.Children, randomTree(f, depth-1, fanout))
	}
	return d
}
