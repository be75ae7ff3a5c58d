package echoServer

import (
	"libraryapi/app/echoServer/controller/auth"
	"libraryapi/app/echoServer/controller/book"
	"libraryapi/app/echoServer/controller/checkout"
	"libraryapi/app/echoServer/controller/user"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

type C struct {
	Auth     *auth.Controller
	Book     *book.Controller
	Checkout *checkout.Controller
	User     *user.Controller

	JWTSecret string
}

func Register(e *echo.Echo, c C) {
	// Public
	e.POST("/auth/login", c.Auth.Login)

	// Token required
	api := e.Group("")
	api.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(c.JWTSecret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims { return jwt.MapClaims{} },
	}))

	api.GET("/books", c.Book.List)
	api.GET("/books/:id", c.Book.ByID)
	api.POST("/books", c.Book.Create)
	api.PATCH("/books/:id", c.Book.Update)
	api.DELETE("/books/:id", c.Book.Delete)

	// Admin endpoints
	admin := api.Group("", AdminOnly())
	admin.POST("/auth/register", c.Auth.Register)

	admin.GET("/checkouts", c.Checkout.List)
	admin.GET("/checkouts/:bookId", c.Checkout.ByBook)
	admin.POST("/checkouts", c.Checkout.Create)
	admin.PATCH("/checkouts/:id", c.Checkout.Return)

	admin.GET("/users", c.User.List)
	admin.GET("/users/:id", c.User.ByID)
}
