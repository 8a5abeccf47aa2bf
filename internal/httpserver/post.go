package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sokolovdm/socialnet/internal/logging"
	"github.com/sokolovdm/socialnet/internal/middleware"
	"github.com/sokolovdm/socialnet/internal/service"
	"github.com/sokolovdm/socialnet/internal/util"
)

type PostHTTP struct {
	Svc *service.PostService
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}
	return uint(id), nil
}

func (h *PostHTTP) GetPosts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "post.get_posts")

	posts, err := h.Svc.GetAllPosts(ctx)
	if err != nil {
		l.Error("get_posts_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot get posts")
	}

	return c.JSON(http.StatusOK, posts)
}

func (h *PostHTTP) GetPost(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "post.get_post")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	post, err := h.Svc.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		l.Error("get_post_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot get post")
	}

	return c.JSON(http.StatusOK, post)
}

func (h *PostHTTP) CreatePost(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "post.create_post")

	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("create_post_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	auth := middleware.CurrentAuth(c)
	if auth == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing tokens")
	}
	userID, err := auth.UserID()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired access token")
	}

	post, err := h.Svc.CreatePost(ctx, userID, req.Content)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, "content is required")
		}
		l.Error("create_post_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create post")
	}

	l.Info("create_post_success", "post_id", post.ID)
	return c.JSON(http.StatusCreated, post)
}

func (h *PostHTTP) UpdatePost(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "post.update_post")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("update_post_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	post, err := h.Svc.UpdatePost(ctx, id, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "content is required")
		}
		l.Error("update_post_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot update post")
	}

	return c.JSON(http.StatusOK, post)
}

func (h *PostHTTP) DeletePost(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "post.delete_post")

	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.Svc.DeletePost(ctx, id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		l.Error("delete_post_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete post")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *PostHTTP) SearchPosts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "post.search_posts")

	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, limit := util.Calculate(page, size)

	total, posts, err := h.Svc.SearchPosts(ctx, q, from, limit)
	if err != nil {
		l.Error("search_posts_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total": total,
		"posts": posts,
	})
}
