package web

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"tripvault/auth"
	"tripvault/config"
	"tripvault/db/db"
	"tripvault/metrics"
)

const userIDKey = "userID"

func CorsConfig(origins []string) cors.Config {
	corsConf := cors.DefaultConfig()
	if len(origins) == 0 {
		corsConf.AllowAllOrigins = true
	} else {
		corsConf.AllowOrigins = origins
	}
	corsConf.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConf.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	corsConf.AllowCredentials = true
	corsConf.MaxAge = 1 * time.Hour
	return corsConf
}

// WebsocketOriginChecker accepts the same origins as CorsConfig, plus the
// server's own host. Clients that send no Origin header are not browsers and
// pass.
func WebsocketOriginChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed[origin] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

func limiterMiddleWare(perHour int) gin.HandlerFunc {
	rate := limiter.Rate{
		Period: 1 * time.Hour,
		Limit:  int64(perHour),
	}
	store := memory.NewStore()
	instance := limiter.New(store, rate)
	return mgin.NewMiddleware(instance)
}

// requestLogger logs every request through slog and counts it by route.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.HTTPRequest(c.Request.Method, route, strconv.Itoa(status))

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		slog.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}

// AuthMiddleware verifies the bearer token, falling back to the token query
// parameter browsers use for websockets, and refreshes the caller's profile
// from its claims.
func AuthMiddleware(jwtManager *auth.JWTManager, users db.UserDBWrapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			abortWithMessage(c, http.StatusUnauthorized, auth.ErrMissingToken.Error())
			return
		}
		claims, err := jwtManager.Validate(token)
		if err != nil {
			abortWithMessage(c, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
			return
		}

		ctx := auth.WithClaims(c.Request.Context(), claims)
		profile := &db.UserProfile{
			ID:        claims.UserID(),
			FirstName: claims.FirstName,
			LastName:  claims.LastName,
			Email:     claims.Email,
			ImageURL:  claims.ImageURL,
			UpdatedAt: time.Now().UTC(),
		}
		if err := users.UpsertProfile(ctx, profile); err != nil {
			slog.WarnContext(ctx, "failed to sync user profile", "user", profile.ID, "error", err)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Set(userIDKey, claims.UserID())
		c.Next()
	}
}

func UserDataLoaderInjectionMiddleware(wrapper db.UserDBWrapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := db.WithUserDataLoader(c.Request.Context(), db.NewUserDataLoader(wrapper))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func setupMiddlewares(r *gin.Engine, cfg *config.Config) {
	r.Use(limiterMiddleWare(cfg.RateLimit))
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(cors.New(CorsConfig(cfg.AllowedOrigins)))
	// websocket upgrades must reach the raw connection
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`/events$`})))
	r.Use(secure.New(secure.Config{
		STSSeconds:           31536000, // 1 year
		STSIncludeSubdomains: true,
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		ReferrerPolicy:       "strict-origin-when-cross-origin",
		IsDevelopment:        cfg.IsDev,
	}))
}
