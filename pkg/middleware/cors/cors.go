package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

var (
	allowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}
	allowedHeaders = []string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"}
	// Export downloads name their file through Content-Disposition.
	exposedHeaders = []string{"X-Request-ID", "Content-Disposition"}
)

// New adapts rs/cors to gin. An empty origin list allows any origin without
// credentials; listed origins are matched exactly, ignoring a trailing slash,
// and may send credentials. Preflight requests stop here.
func New(allowedOrigins []string) gin.HandlerFunc {
	origins := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	restricted := len(origins) > 0
	if !restricted {
		origins = []string{"*"}
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:       origins,
		AllowedMethods:       allowedMethods,
		AllowedHeaders:       allowedHeaders,
		ExposedHeaders:       exposedHeaders,
		AllowCredentials:     restricted,
		MaxAge:               600,
		OptionsSuccessStatus: http.StatusNoContent,
	})

	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			c.Request.Header.Set("Origin", strings.TrimRight(origin, "/"))
		}
		handler.HandlerFunc(c.Writer, c.Request)
		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
