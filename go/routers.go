package orderserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Route is the information for every URI.
type Route struct {
	// Name is the name of this Route.
	Name string
	// Method is the string for the HTTP method. ex) GET, POST etc..
	Method string
	// Pattern is the pattern of the URI.
	Pattern string
	// HandlerFunc is the handler function of this route.
	HandlerFunc gin.HandlerFunc
	// Authenticated routes require a caller subject.
	Authenticated bool
}

// ApiHandleFunctions collects the handlers served by the router.
type ApiHandleFunctions struct {
	// IdentityHeader names the header carrying the caller subject; DefaultIdentityHeader when empty.
	IdentityHeader string

	OrdersAPI OrdersAPI
	HealthAPI HealthAPI
}

// NewRouter returns a new router.
func NewRouter(handleFunctions ApiHandleFunctions) *gin.Engine {
	return NewRouterWithGinEngine(gin.Default(), handleFunctions)
}

// NewRouterWithGinEngine adds the routes to an existing gin engine.
func NewRouterWithGinEngine(router *gin.Engine, handleFunctions ApiHandleFunctions) *gin.Engine {
	requireSubject := RequireSubject(handleFunctions.IdentityHeader)
	for _, route := range getRoutes(handleFunctions) {
		if route.HandlerFunc == nil {
			route.HandlerFunc = DefaultHandleFunc
		}
		handlers := []gin.HandlerFunc{route.HandlerFunc}
		if route.Authenticated {
			handlers = append([]gin.HandlerFunc{requireSubject}, handlers...)
		}
		router.Handle(route.Method, route.Pattern, handlers...)
	}
	return router
}

// DefaultHandleFunc is the default handler for routes that have no implementation.
func DefaultHandleFunc(c *gin.Context) {
	c.String(http.StatusNotImplemented, "501 not implemented")
}

func getRoutes(handleFunctions ApiHandleFunctions) []Route {
	return []Route{
		{
			Name:          "SubmitOrder",
			Method:        http.MethodPost,
			Pattern:       "/orders",
			HandlerFunc:   handleFunctions.OrdersAPI.SubmitOrder,
			Authenticated: true,
		},
		{
			Name:          "ListOrders",
			Method:        http.MethodGet,
			Pattern:       "/orders",
			HandlerFunc:   handleFunctions.OrdersAPI.ListOrders,
			Authenticated: true,
		},
		{
			Name:        "Healthz",
			Method:      http.MethodGet,
			Pattern:     "/healthz",
			HandlerFunc: handleFunctions.HealthAPI.Healthz,
		},
	}
}
