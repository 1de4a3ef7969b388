package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"inkwell/internal/auth"
	"inkwell/internal/config"
	"inkwell/internal/db"
)

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(cfg *config.Config, database *db.DB) (*Server, error) {
	tokens, err := auth.NewTokenService(
		cfg.Auth.JWTSecret,
		cfg.Auth.Algorithm,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)
	if err != nil {
		return nil, err
	}

	users := db.NewUserRepository(database)
	posts := db.NewPostRepository(database)
	topics := db.NewTopicRepository(database)
	comments := db.NewCommentRepository(database)
	reactions := db.NewReactionRepository(database)

	authHandler := NewAuthHandler(users, tokens)
	userHandler := NewUserHandler(users)
	topicHandler := NewTopicHandler(topics, cfg.Limits.PageSizeMax)
	postHandler := NewPostHandler(posts, topics, comments, reactions, users, cfg.Limits.PageSizeMax)
	commentHandler := NewCommentHandler(comments, posts, users, cfg.Limits.ReplyCap, cfg.Limits.PageSizeMax)
	reactionHandler := NewReactionHandler(reactions, posts, cfg.Limits.ReactionCap)
	healthHandler := NewHealthHandler(database)

	guard := NewAuthMiddleware(tokens, users)

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", healthHandler.Check)
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the blog post api!"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(maxBodySizeMiddleware(int64(cfg.Limits.MaxBodyBytes)))

		r.With(httprate.LimitByIP(10, time.Minute)).Post("/registration", authHandler.Register)
		r.With(httprate.LimitByIP(10, time.Minute)).Post("/token", authHandler.Login)
		r.With(httprate.LimitByIP(30, time.Minute)).Post("/update-access-token", authHandler.UpdateAccessToken)

		r.Group(func(r chi.Router) {
			r.Use(guard.RequireAuth)
			r.Put("/logout-from-all-device", authHandler.LogoutEverywhere)
			r.Post("/change-password", authHandler.ChangePassword)
			r.Get("/me", userHandler.GetMe)
			r.Patch("/update-user", userHandler.UpdateMe)
		})

		r.With(guard.RequireAuth).Post("/topics", topicHandler.Create)
		r.With(guard.OptionalAuth).Get("/topics", topicHandler.List)

		r.With(guard.RequireAuth).Post("/posts", postHandler.Create)
		r.With(guard.OptionalAuth).Get("/posts", postHandler.List)
		r.With(guard.OptionalAuth).Get("/posts/{slug}", postHandler.GetBySlug)
		r.With(guard.RequireAuth).Patch("/posts/{slug}", postHandler.Update)
		r.With(guard.RequireAuth).Delete("/posts/{slug}", postHandler.Delete)

		r.Route("/posts/{postID}/comments", func(r chi.Router) {
			r.With(guard.RequireAuth).Post("/", commentHandler.Create)
			r.With(guard.OptionalAuth).Get("/", commentHandler.List)
			r.With(guard.RequireAuth).Put("/{commentID}", commentHandler.Update)
			r.With(guard.RequireAuth).Delete("/{commentID}", commentHandler.Delete)

			r.Group(func(r chi.Router) {
				r.Use(guard.RequireAuth)
				r.Post("/{commentID}/replies", commentHandler.CreateReply)
				r.Put("/{commentID}/replies/{replyID}", commentHandler.UpdateReply)
				r.Delete("/{commentID}/replies/{replyID}", commentHandler.DeleteReply)
			})
		})

		r.Route("/posts/{postID}/reactions", func(r chi.Router) {
			r.Use(guard.RequireAuth)
			r.Post("/", reactionHandler.Add)
			r.Delete("/", reactionHandler.Remove)
		})
	})

	return &Server{
		router: r,
		config: cfg,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}
