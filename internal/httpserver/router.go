package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sokolovdm/socialnet/internal/middleware"
)

type Deps struct {
	AuthHandler *AuthHTTP
	PostHandler *PostHTTP
	UserHandler *UserHTTP
	Guard       *middleware.Guard
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.POST("/register", d.AuthHandler.Register)
	e.POST("/login", d.AuthHandler.Login)

	auth := e.Group("/auth", d.Guard.RequireAuth)
	auth.GET("/token-info", d.AuthHandler.TokenInfo)

	private := e.Group("", d.Guard.RequireAuth)
	private.POST("/refresh", d.AuthHandler.Refresh)
	private.POST("/logout", d.AuthHandler.LogOut)

	posts := e.Group("/posts")
	posts.GET("", d.PostHandler.GetPosts)
	posts.GET("/search", d.PostHandler.SearchPosts)
	posts.GET("/:id", d.PostHandler.GetPost)

	postWrites := posts.Group("", d.Guard.RequireAuth)
	postWrites.POST("", d.PostHandler.CreatePost)
	postWrites.PATCH("/:id", d.PostHandler.UpdatePost)
	postWrites.DELETE("/:id", d.PostHandler.DeletePost)

	users := e.Group("/users")
	users.GET("", d.UserHandler.GetUsers)
	users.GET("/:id", d.UserHandler.GetUser)
	users.DELETE("/:id", d.UserHandler.DeleteUser, d.Guard.RequireAuth)
}
