package middleware

import (
	"net/http"
	"time"

	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/Dhoini/newsletter-billing/pkg/res"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterIdleTTL сколько хранится лимитер неактивного пользователя
const limiterIdleTTL = 10 * time.Minute

// RateLimiter ограничивает частоту запросов отдельно для каждого пользователя
// (или IP, если пользователь не аутентифицирован).
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *cache.Cache
	log      *logger.Logger
}

// NewRateLimiter создает ограничитель rps/burst
func NewRateLimiter(rps float64, burst int, log *logger.Logger) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: cache.New(limiterIdleTTL, 2*limiterIdleTTL),
		log:      log,
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	if l, ok := rl.limiters.Get(key); ok {
		rl.limiters.SetDefault(key, l)
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	if err := rl.limiters.Add(key, l, cache.DefaultExpiration); err != nil {
		// ключ уже добавлен параллельным запросом
		if existing, ok := rl.limiters.Get(key); ok {
			return existing.(*rate.Limiter)
		}
	}
	return l
}

// Middleware возвращает gin middleware. Ставить после RequireAuth.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := UserID(c)
		if !ok {
			key = "ip:" + c.ClientIP()
		}
		if !rl.limiterFor(key).Allow() {
			rl.log.Warnw("Rate limit exceeded", "key", key, "path", c.Request.URL.Path)
			res.JsonErrorResponse(c, res.ErrorResponse{Error: "Too many requests"}, http.StatusTooManyRequests, nil)
			return
		}
		c.Next()
	}
}
