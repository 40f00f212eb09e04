package treeview

import "github.com/bluesky-social/mptt/models"

func ChildrenQuery(n *models.Node) models.Query {
	return models.Query{
		Where: models.Where{
			models.Eq(models.FieldTreeID, n.TreeID),
			models.Eq(models.FieldParentID, n.ID),
		},
		OrderBy: []models.Order{models.Asc(models.FieldLeft)},
	}
}

// SiblingsQuery selects the nodes sharing n's parent. The siblings of a
// root are the other roots, in forest order.
func SiblingsQuery(n *models.Node, includeSelf bool) models.Query {
	var q models.Query
	if n.IsRoot() {
		q.Where = models.Where{models.IsNull(models.FieldParentID)}
		q.OrderBy = []models.Order{models.Asc(models.FieldTreeID)}
	} else {
		q.Where = models.Where{
			models.Eq(models.FieldTreeID, n.TreeID),
			models.Eq(models.FieldParentID, *n.ParentID),
		}
		q.OrderBy = []models.Order{models.Asc(models.FieldLeft)}
	}
	if !includeSelf {
		q.Where = q.Where.And(models.Ne(models.FieldID, n.ID))
	}
	return q
}

// LeftSiblingInLevelQuery selects the closest node on n's level to the
// left of n, whatever its parent.
func LeftSiblingInLevelQuery(n *models.Node) models.Query {
	return models.Query{
		Where: models.Where{
			models.Eq(models.FieldTreeID, n.TreeID),
			models.Eq(models.FieldLevel, n.Level),
			models.Lt(models.FieldLeft, n.Left),
		},
		OrderBy: []models.Order{models.Desc(models.FieldLeft)},
		Limit:   1,
	}
}

// PathQuery selects n and its ancestors, root first unless rootLast.
func PathQuery(n *models.Node, rootLast bool) models.Query {
	q := AncestorsQuery(n, true)
	if rootLast {
		q.OrderBy = []models.Order{
			models.Desc(models.FieldTreeID),
			models.Desc(models.FieldLevel),
			models.Desc(models.FieldLeft),
		}
	}
	return q
}

func AncestorsQuery(n *models.Node, inclusive bool) models.Query {
	w := models.Where{models.Eq(models.FieldTreeID, n.TreeID)}
	if inclusive {
		w = w.And(models.Le(models.FieldLeft, n.Left), models.Ge(models.FieldRight, n.Right))
	} else {
		w = w.And(models.Lt(models.FieldLeft, n.Left), models.Gt(models.FieldRight, n.Right))
	}
	return models.Query{Where: w, OrderBy: models.ForestOrder}
}

// DescendantsQuery selects the subtree under n in (tree_id, level, lft)
// order, ready for Reconstruct.
func DescendantsQuery(n *models.Node, inclusive bool) models.Query {
	w := models.Where{models.Eq(models.FieldTreeID, n.TreeID)}
	if inclusive {
		w = w.And(models.Ge(models.FieldLeft, n.Left), models.Le(models.FieldRight, n.Right))
	} else {
		w = w.And(models.Gt(models.FieldLeft, n.Left), models.Lt(models.FieldRight, n.Right))
	}
	return models.Query{Where: w, OrderBy: models.ForestOrder}
}

// ForestQuery selects whole trees for Reconstruct. With no ids it selects
// the entire forest.
func ForestQuery(treeIDs ...int64) models.Query {
	q := models.Query{OrderBy: models.ForestOrder}
	if len(treeIDs) > 0 {
		q.Where = models.Where{models.In(models.FieldTreeID, treeIDs)}
	}
	return q
}
