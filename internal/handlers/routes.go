package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/respond"
	"github.com/vidtube/backend/internal/storage"
	"github.com/vidtube/backend/internal/videos"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users     repositories.UserRepository
	Sessions  SessionManager
	Videos    repositories.VideoRepository
	Comments  repositories.CommentRepository
	Tweets    repositories.TweetRepository
	Playlists repositories.PlaylistRepository
	Edges     repositories.EdgeRepository
	Reads     ReadModels

	Media  storage.Uploader
	Prober videos.Prober
	Views  ViewRecorder
	Health HealthChecker

	// AuthLimiter throttles register, login and refresh per client. Nil
	// disables it.
	AuthLimiter  middleware.RateLimiter
	CORSOrigin   string
	CookieSecure bool
}

// NewRouter wires HTTP handlers onto a chi router.
func NewRouter(deps Dependencies) http.Handler {
	media := mediaStore{uploader: deps.Media}
	authn := middleware.Authenticator{Tokens: deps.Sessions, Users: deps.Users}

	health := HealthHandler{Store: deps.Health}
	authH := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Media: media, Cookies: CookieOptions{Secure: deps.CookieSecure}}
	users := UserHandler{Users: deps.Users, Reads: deps.Reads, Media: media}
	vids := VideoHandler{Videos: deps.Videos, Reads: deps.Reads, Media: media, Prober: deps.Prober, Views: deps.Views}
	comments := CommentHandler{Comments: deps.Comments, Videos: deps.Videos, Reads: deps.Reads}
	likes := LikeHandler{Edges: deps.Edges, Videos: deps.Videos, Comments: deps.Comments, Tweets: deps.Tweets, Reads: deps.Reads}
	tweets := TweetHandler{Tweets: deps.Tweets, Reads: deps.Reads}
	playlists := PlaylistHandler{Playlists: deps.Playlists, Videos: deps.Videos, Reads: deps.Reads}
	subs := SubscriptionHandler{Users: deps.Users, Edges: deps.Edges, Reads: deps.Reads}
	dashboard := DashboardHandler{Reads: deps.Reads}

	throttle := func(scope string) func(http.Handler) http.Handler {
		if deps.AuthLimiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RateLimit(deps.AuthLimiter, scope)
	}

	r := chi.NewRouter()
	r.Use(middleware.CORS(deps.CORSOrigin))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(r.Context(), w, apierror.NotFound("route not found"))
	})

	r.Get("/healthz", health.Handle)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.With(throttle("register")).Post("/register", handle(authH.Register))
			r.With(throttle("login")).Post("/login", handle(authH.Login))
			r.With(throttle("refresh")).Post("/refresh-token", handle(authH.Refresh))
			r.With(authn.Optional).Get("/channel/{username}", handle(users.Channel))

			r.Group(func(r chi.Router) {
				r.Use(authn.Required)
				r.Post("/logout", handle(authH.Logout))
				r.Post("/change-password", handle(authH.ChangePassword))
				r.Get("/current-user", handle(users.CurrentUser))
				r.Patch("/update-account", handle(users.UpdateAccount))
				r.Patch("/avatar", handle(users.UpdateAvatar))
				r.Patch("/cover-image", handle(users.UpdateCoverImage))
				r.Get("/watch-history", handle(users.WatchHistory))
			})
		})

		r.Route("/videos", func(r chi.Router) {
			r.Get("/suggestions", handle(vids.Suggestions))
			r.With(authn.Optional).Get("/", handle(vids.Feed))
			r.With(authn.Optional).Get("/{videoId}", handle(vids.Get))

			r.Group(func(r chi.Router) {
				r.Use(authn.Required)
				r.Post("/", handle(vids.Publish))
				r.Patch("/{videoId}", handle(vids.Update))
				r.Delete("/{videoId}", handle(vids.Delete))
				r.Patch("/{videoId}/toggle-publish", handle(vids.TogglePublish))
			})
		})

		r.Route("/comments", func(r chi.Router) {
			r.Use(authn.Required)
			r.Get("/{id}", handle(comments.List))
			r.Post("/{id}", handle(comments.Create))
			r.Patch("/{id}", handle(comments.Update))
			r.Delete("/{id}", handle(comments.Delete))
		})

		r.Route("/likes", func(r chi.Router) {
			r.Use(authn.Required)
			r.Get("/videos", handle(likes.LikedVideos))
			r.Post("/videos/{videoId}", handle(likes.ToggleVideo))
			r.Post("/comments/{commentId}", handle(likes.ToggleComment))
			r.Post("/tweets/{tweetId}", handle(likes.ToggleTweet))
		})

		r.Route("/tweets", func(r chi.Router) {
			r.Use(authn.Required)
			r.Post("/", handle(tweets.Create))
			r.Get("/user", handle(tweets.Mine))
			r.Patch("/{tweetId}", handle(tweets.Update))
			r.Delete("/{tweetId}", handle(tweets.Delete))
		})

		r.Route("/playlist", func(r chi.Router) {
			r.Use(authn.Required)
			r.Get("/user/{userId}", handle(playlists.ByUser))
			r.Patch("/add/{videoId}/{playlistId}", handle(playlists.AddVideo))
			r.Patch("/remove/{videoId}/{playlistId}", handle(playlists.RemoveVideo))
			r.Post("/{id}", handle(playlists.Create))
			r.Get("/{id}", handle(playlists.Get))
			r.Patch("/{id}", handle(playlists.Update))
			r.Delete("/{id}", handle(playlists.Delete))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Use(authn.Required)
			r.Get("/user/{subscriberId}/channels", handle(subs.Channels))
			r.Post("/{channelId}", handle(subs.Toggle))
			r.Get("/{channelId}/subscribers", handle(subs.Subscribers))
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(authn.Required)
			r.Get("/stats", handle(dashboard.Stats))
			r.Get("/videos", handle(dashboard.Videos))
		})
	})

	return r
}
