package router

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gulfquotes/internal/cache"
	"gulfquotes/internal/handlers"
	"gulfquotes/internal/metrics"
	"gulfquotes/internal/middleware"
	"gulfquotes/internal/models"
	"gulfquotes/internal/services"
)

const sessionName = "gulfquotes_session"

// Services is every domain service the API needs.
type Services struct {
	Users         *services.UserService
	Notifications *services.NotificationService
	Likes         *services.LikeService
	Comments      *services.CommentService
	Replies       *services.ReplyService
	Quotes        *services.QuoteService
	Bookmarks     *services.BookmarkService
	Authors       *services.AuthorService
	Tags          *services.TagService
	Categories    *services.CategoryService
	Gallery       *services.GalleryService
	Search        *services.SearchService
}

// NewServices wires the services against one database connection.
func NewServices(conn *gorm.DB, log logrus.FieldLogger, queue services.EmailQueue, m *metrics.Metrics, c cache.Cache, siteURL string) *Services {
	s := &Services{
		Users:         services.NewUserService(conn, log),
		Notifications: services.NewNotificationService(conn, log, queue, m, siteURL),
		Likes:         services.NewLikeService(conn, log),
		Bookmarks:     services.NewBookmarkService(conn, log),
		Authors:       services.NewAuthorService(conn, log),
		Tags:          services.NewTagService(conn, log),
		Categories:    services.NewCategoryService(conn, log),
		Gallery:       services.NewGalleryService(conn, log),
		Search:        services.NewSearchService(conn, log, c),
	}
	s.Comments = services.NewCommentService(conn, log, s.Likes, s.Notifications)
	s.Replies = services.NewReplyService(conn, log, s.Likes, s.Comments, s.Notifications)
	s.Quotes = services.NewQuoteService(conn, log, s.Likes, s.Notifications)
	return s
}

type Options struct {
	DB             *gorm.DB
	Log            logrus.FieldLogger
	Metrics        *metrics.Metrics
	Limiter        *middleware.IPRateLimiter // nil disables rate limiting
	SessionSecret  string
	SecureCookie   bool
	TrustedProxies []string // nil trusts no proxy, ClientIP is the RemoteAddr
}

// New builds the engine with the middleware chain and every route.
func New(opts Options, s *Services) *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(opts.TrustedProxies); err != nil {
		opts.Log.WithError(err).Error("invalid trusted proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(opts.Log, opts.Metrics))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		Secure:   opts.SecureCookie,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(middleware.LoadUser(opts.DB))
	if opts.Limiter != nil {
		r.Use(middleware.RateLimit(opts.Limiter, opts.Metrics))
	}

	r.GET("/healthz", handlers.Healthz)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	RegisterRoutes(r, opts.Log, s)
	return r
}

func RegisterRoutes(r *gin.Engine, log logrus.FieldLogger, s *Services) {
	// Handlers
	authHandler := handlers.NewAuthHandler(s.Users, log)
	userHandler := handlers.NewUserHandler(s.Users, s.Bookmarks, log)
	quoteHandler := handlers.NewQuoteHandler(s.Quotes, s.Search, log)
	likeHandler := handlers.NewLikeHandler(s.Quotes, s.Comments, s.Replies, log)
	bookmarkHandler := handlers.NewBookmarkHandler(s.Bookmarks, log)
	commentHandler := handlers.NewCommentHandler(s.Comments, s.Replies, log)
	notificationHandler := handlers.NewNotificationHandler(s.Notifications, log)
	catalogHandler := handlers.NewCatalogHandler(s.Authors, s.Tags, s.Categories, s.Gallery, s.Search, log)

	api := r.Group("/api")

	// 公共路由 (Public Routes)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)

	api.GET("/quotes", quoteHandler.List)
	api.GET("/quotes/:slug", quoteHandler.Get)
	api.POST("/quotes/:slug/download", quoteHandler.Download)
	api.GET("/quotes/:slug/comments", commentHandler.List)
	api.GET("/quotes/:slug/comments/:commentId/replies", commentHandler.ListReplies)

	api.GET("/authors", catalogHandler.ListAuthors)
	api.GET("/authors/:slug", catalogHandler.GetAuthor)
	api.GET("/tags", catalogHandler.ListTags)
	api.GET("/tags/:slug", catalogHandler.GetTag)
	api.GET("/categories", catalogHandler.ListCategories)
	api.GET("/search/suggestions", catalogHandler.Suggestions)

	// 受保护路由 (Protected Routes)
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/me", userHandler.Me)
		authorized.GET("/me/settings", userHandler.Settings)
		authorized.PATCH("/me/settings", userHandler.UpdateSettings)
		authorized.GET("/users/me/bookmarks", userHandler.Bookmarks)

		authorized.PATCH("/quotes/:slug", quoteHandler.Update)
		authorized.DELETE("/quotes/:slug", quoteHandler.Delete)
		authorized.POST("/quotes/:slug/images", quoteHandler.AddImages)
		authorized.DELETE("/quotes/:slug/images", quoteHandler.RemoveImage)
		authorized.POST("/quotes/:slug/like", likeHandler.ToggleQuote)
		authorized.GET("/quotes/:slug/like", likeHandler.QuoteStatus)
		authorized.POST("/quotes/:slug/bookmark", bookmarkHandler.Toggle)

		authorized.POST("/quotes/:slug/comments", commentHandler.Create)
		authorized.POST("/quotes/:slug/comments/:commentId/replies", commentHandler.CreateReply)
		authorized.PATCH("/comments/:id", commentHandler.Update)
		authorized.DELETE("/comments/:id", commentHandler.Delete)
		authorized.POST("/comments/:id/like", likeHandler.ToggleComment)
		authorized.PATCH("/replies/:id", commentHandler.UpdateReply)
		authorized.DELETE("/replies/:id", commentHandler.DeleteReply)
		authorized.POST("/replies/:id/like", likeHandler.ToggleReply)

		authorized.GET("/notifications", notificationHandler.List)
		authorized.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		authorized.POST("/notifications/read-all", notificationHandler.ReadAll)
		authorized.POST("/notifications/:id/read", notificationHandler.Read)
		authorized.DELETE("/notifications/:id", notificationHandler.Delete)

		authorized.POST("/authors/:slug/follow", catalogHandler.ToggleFollow)

		authorized.GET("/gallery", catalogHandler.ListGallery)
		authorized.POST("/gallery", catalogHandler.CreateGallery)
	}

	// 发布名言需要作者或管理员
	publishers := api.Group("")
	publishers.Use(middleware.RequireRole(models.RoleAuthor, models.RoleAdmin))
	{
		publishers.POST("/quotes", quoteHandler.Create)
	}
}
