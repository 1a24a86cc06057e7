package handlers

import (
	"net/http"
	"sort"

	"englishapp/internal/observability"

	"github.com/gin-gonic/gin"
)

// RouteInfo is one registered path and the methods it answers
type RouteInfo struct {
	Path    string   `json:"path"`
	Methods []string `json:"methods"`
}

// ListRoutes groups the routes of engine by path, sorted by path then method
func ListRoutes(engine *gin.Engine) []RouteInfo {
	byPath := map[string][]string{}
	for _, route := range engine.Routes() {
		byPath[route.Path] = append(byPath[route.Path], route.Method)
	}

	routes := make([]RouteInfo, 0, len(byPath))
	for path, methods := range byPath {
		sort.Strings(methods)
		routes = append(routes, RouteInfo{Path: path, Methods: methods})
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
	return routes
}

// RouteListing serves the routes of engine as JSON. The listing is read on every request,
// so routes registered after this handler are included.
func RouteListing(serviceName string, engine *gin.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := observability.TraceHandlerFunction(c.Request.Context(), "route_listing")
		defer observability.FinishSpan(span, nil)

		c.JSON(http.StatusOK, gin.H{"service": serviceName, "routes": ListRoutes(engine)})
	}
}
