package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bluesky-social/mptt/interval"
	"github.com/bluesky-social/mptt/models"
	"github.com/bluesky-social/mptt/nestedset"
	"github.com/bluesky-social/mptt/treeview"

	"github.com/labstack/echo/v4"
)

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type InsertRequest struct {
	ParentID *models.NodeID `json:"parent_id"`
	Name     string         `json:"name"`
}

type MoveRequest struct {
	Position string        `json:"position"`
	Anchor   models.NodeID `json:"anchor"`
}

type RebuildRequest struct {
	Trees []int64 `json:"trees"`
}

type CheckResult struct {
	OK         bool     `json:"ok"`
	Violations []string `json:"violations,omitempty"`
}

// engineError maps engine errors onto HTTP responses.
func (srv *Server) engineError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, nestedset.ErrNodeNotFound):
		return c.JSON(http.StatusNotFound, GenericError{Error: "NodeNotFound", Message: err.Error()})
	case errors.Is(err, nestedset.ErrInvalidMove):
		return c.JSON(http.StatusBadRequest, GenericError{Error: "InvalidMove", Message: err.Error()})
	case errors.Is(err, nestedset.ErrConcurrencyConflict):
		return c.JSON(http.StatusConflict, GenericError{Error: "ConcurrencyConflict", Message: err.Error()})
	case errors.Is(err, nestedset.ErrIntegrityViolation):
		srv.logger.Error("integrity violation", "path", c.Path(), "err", err)
		return c.JSON(http.StatusInternalServerError, GenericError{Error: "IntegrityViolation", Message: err.Error()})
	}
	srv.logger.Error("engine failure", "path", c.Path(), "err", err)
	return c.JSON(http.StatusInternalServerError, GenericError{Error: "InternalError", Message: "internal error"})
}

func badRequest(c echo.Context, format string, args ...any) error {
	return c.JSON(http.StatusBadRequest, GenericError{Error: "BadRequest", Message: fmt.Sprintf(format, args...)})
}

func pathID(c echo.Context) (models.NodeID, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid node id: %q", c.Param("id"))
	}
	return models.NodeID(id), nil
}

func queryBool(c echo.Context, name string) bool {
	b, _ := strconv.ParseBool(c.QueryParam(name))
	return b
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("mptt-http-internal-error", "err", err)
	}
	if c.Response().Committed {
		return
	}
	c.JSON(code, GenericStatus{Status: "error", Daemon: "mptt", Message: errorMessage}) // nolint:errcheck
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "mptt"})
}

// HandleForest returns trees in jqTree form, or as nested node objects
// with format=nested. Repeat tree= to select trees.
func (srv *Server) HandleForest(c echo.Context) error {
	trees, err := parseTreeIDs(c.QueryParams()["tree"])
	if err != nil {
		return badRequest(c, "%s", err)
	}
	forest, err := srv.engine.Forest(c.Request().Context(), trees)
	if err != nil {
		return srv.engineError(c, err)
	}
	return srv.renderTrees(c, forest)
}

func (srv *Server) HandleDrilldown(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "%s", err)
	}
	sub, err := srv.engine.DrilldownTree(c.Request().Context(), id)
	if err != nil {
		return srv.engineError(c, err)
	}
	return srv.renderTrees(c, sub)
}

func (srv *Server) renderTrees(c echo.Context, trees []*treeview.Node) error {
	switch c.QueryParam("format") {
	case "", "jqtree":
		return c.JSON(http.StatusOK, treeview.JQTree(trees, nil))
	case "nested":
		return c.JSON(http.StatusOK, trees)
	case "text":
		return c.String(http.StatusOK, treeview.Render(trees))
	}
	return badRequest(c, "unknown format %q", c.QueryParam("format"))
}

func (srv *Server) HandleGetNode(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "%s", err)
	}
	n, err := srv.engine.Get(c.Request().Context(), id)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(http.StatusOK, n)
}

// nodeList serves the read endpoints that return a flat list of nodes
// related to the one in the path.
func (srv *Server) nodeList(c echo.Context, query func(id models.NodeID) ([]models.Node, error)) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "%s", err)
	}
	rows, err := query(id)
	if err != nil {
		return srv.engineError(c, err)
	}
	if rows == nil {
		rows = []models.Node{}
	}
	return c.JSON(http.StatusOK, rows)
}

func (srv *Server) HandleChildren(c echo.Context) error {
	return srv.nodeList(c, func(id models.NodeID) ([]models.Node, error) {
		return srv.engine.ChildrenOf(c.Request().Context(), id)
	})
}

func (srv *Server) HandleSiblings(c echo.Context) error {
	return srv.nodeList(c, func(id models.NodeID) ([]models.Node, error) {
		return srv.engine.SiblingsOf(c.Request().Context(), id, queryBool(c, "include_self"))
	})
}

func (srv *Server) HandleAncestors(c echo.Context) error {
	return srv.nodeList(c, func(id models.NodeID) ([]models.Node, error) {
		return srv.engine.Ancestors(c.Request().Context(), id, queryBool(c, "include_self"))
	})
}

func (srv *Server) HandlePath(c echo.Context) error {
	return srv.nodeList(c, func(id models.NodeID) ([]models.Node, error) {
		return srv.engine.PathToRoot(c.Request().Context(), id, queryBool(c, "root_last"))
	})
}

func (srv *Server) HandleDescendants(c echo.Context) error {
	return srv.nodeList(c, func(id models.NodeID) ([]models.Node, error) {
		return srv.engine.Descendants(c.Request().Context(), id, queryBool(c, "include_self"))
	})
}

func (srv *Server) HandleInsert(c echo.Context) error {
	var req InsertRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body: %s", err)
	}
	n := &models.Node{ParentID: req.ParentID, Name: req.Name}
	if _, err := srv.engine.Insert(c.Request().Context(), n); err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(http.StatusCreated, n)
}

func (srv *Server) HandleDelete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "%s", err)
	}
	if err := srv.engine.Delete(c.Request().Context(), id); err != nil {
		return srv.engineError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (srv *Server) HandleMove(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "%s", err)
	}
	var req MoveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body: %s", err)
	}
	pos, err := nestedset.ParsePosition(req.Position)
	if err != nil {
		return badRequest(c, "%s", err)
	}
	if pos != nestedset.PositionRoot && req.Anchor <= 0 {
		return badRequest(c, "position %s needs an anchor", pos)
	}

	ctx := c.Request().Context()
	if err := srv.engine.Move(ctx, id, nestedset.Destination{Position: pos, Anchor: req.Anchor}); err != nil {
		return srv.engineError(c, err)
	}
	n, err := srv.engine.Get(ctx, id)
	if err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(http.StatusOK, n)
}

func (srv *Server) HandleRebuild(c echo.Context) error {
	var req RebuildRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body: %s", err)
	}
	if err := rebuild(c.Request().Context(), srv.engine, req.Trees); err != nil {
		return srv.engineError(c, err)
	}
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "mptt"})
}

// HandleCheck reports invariant violations in the body; finding some is
// not a failure of the request.
func (srv *Server) HandleCheck(c echo.Context) error {
	trees, err := parseTreeIDs(c.QueryParams()["tree"])
	if err != nil {
		return badRequest(c, "%s", err)
	}
	err = srv.engine.Check(c.Request().Context(), trees...)
	if err == nil {
		return c.JSON(http.StatusOK, CheckResult{OK: true})
	}
	vs := interval.Violations(err)
	if len(vs) == 0 {
		return srv.engineError(c, err)
	}
	out := CheckResult{Violations: make([]string, len(vs))}
	for i, v := range vs {
		out.Violations[i] = v.Error()
	}
	return c.JSON(http.StatusOK, out)
}
