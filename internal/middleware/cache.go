package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseMetaKey = "response_meta"

type responseMeta struct {
	start    time.Time
	cacheHit *bool
}

// WithResponseMeta starts the request clock that ExtractMeta reports from.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{start: time.Now()})
		c.Next()
	}
}

// SetCacheHit marks whether the response body was served from the cache.
func SetCacheHit(c *gin.Context, hit bool) {
	if meta := metaOf(c); meta != nil {
		meta.cacheHit = &hit
	}
}

// ExtractMeta returns the envelope meta for the current request: elapsed
// processing time and, when a handler set it, the cache flag. It returns nil
// outside WithResponseMeta.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := metaOf(c)
	if meta == nil {
		return nil
	}
	out := map[string]interface{}{
		"processing_time_ms": time.Since(meta.start).Milliseconds(),
	}
	if meta.cacheHit != nil {
		out["cache_hit"] = *meta.cacheHit
	}
	return out
}

func metaOf(c *gin.Context) *responseMeta {
	if c == nil {
		return nil
	}
	value, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, _ := value.(*responseMeta)
	return meta
}
