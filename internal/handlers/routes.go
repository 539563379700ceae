package handlers

import (
	"net/http"

	"github.com/videotube/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Sessions      SessionManager
	TokenParser   middleware.AccessTokenParser
	Videos        VideoStore
	Comments      CommentStore
	Tweets        TweetStore
	Likes         LikeToggler
	Subscriptions SubscriptionStore
	Playlists     PlaylistStore
	History       HistoryRecorder
	Views         ViewBuilder
	Storage       AssetStorage
	Ingestor      VideoAssetIngestor
	AuthLimiter   RateLimiter
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	require := middleware.RequireAuth(deps.TokenParser)
	optional := middleware.OptionalAuth(deps.TokenParser)

	health := HealthHandler{}
	authH := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Storage: deps.Storage, Limiter: deps.AuthLimiter}
	users := UserHandler{Users: deps.Users, Views: deps.Views, Storage: deps.Storage}
	videos := VideoHandler{Videos: deps.Videos, Users: deps.Users, History: deps.History, Ingestor: deps.Ingestor}
	comments := CommentHandler{Comments: deps.Comments, Videos: deps.Videos, Users: deps.Users}
	tweets := TweetHandler{Tweets: deps.Tweets, Users: deps.Users}
	likesH := LikeHandler{Likes: deps.Likes}
	subs := SubscriptionHandler{Subscriptions: deps.Subscriptions, Users: deps.Users, Views: deps.Views}
	playlists := PlaylistHandler{Playlists: deps.Playlists, Videos: deps.Videos}

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /api/v1/auth/register", authH.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authH.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", authH.Refresh)
	mux.Handle("POST /api/v1/auth/logout", require(http.HandlerFunc(authH.Logout)))

	mux.Handle("GET /api/v1/users/me", require(http.HandlerFunc(users.Me)))
	mux.Handle("PATCH /api/v1/users/me", require(http.HandlerFunc(users.UpdateProfile)))
	mux.Handle("POST /api/v1/users/me/password", require(http.HandlerFunc(users.ChangePassword)))
	mux.Handle("POST /api/v1/users/me/images", require(http.HandlerFunc(users.UpdateImages)))
	mux.Handle("GET /api/v1/users/me/history", require(http.HandlerFunc(users.WatchHistory)))
	mux.Handle("GET /api/v1/users/me/subscriptions", require(http.HandlerFunc(subs.ListMine)))
	mux.Handle("GET /api/v1/users/me/playlists", require(http.HandlerFunc(playlists.ListMine)))

	mux.Handle("GET /api/v1/channels/{username}", optional(http.HandlerFunc(users.Channel)))
	mux.HandleFunc("GET /api/v1/channels/{username}/tweets", tweets.ListForChannel)
	mux.HandleFunc("GET /api/v1/channels/{username}/subscribers", subs.Subscribers)

	mux.Handle("POST /api/v1/videos", require(http.HandlerFunc(videos.Publish)))
	mux.HandleFunc("GET /api/v1/videos", videos.List)
	mux.Handle("GET /api/v1/videos/{videoId}", optional(http.HandlerFunc(videos.Get)))
	mux.Handle("PATCH /api/v1/videos/{videoId}", require(http.HandlerFunc(videos.Update)))
	mux.Handle("DELETE /api/v1/videos/{videoId}", require(http.HandlerFunc(videos.Delete)))
	mux.Handle("POST /api/v1/videos/{videoId}/toggle-publish", require(http.HandlerFunc(videos.TogglePublish)))

	mux.HandleFunc("GET /api/v1/videos/{videoId}/comments", comments.List)
	mux.Handle("POST /api/v1/videos/{videoId}/comments", require(http.HandlerFunc(comments.Create)))
	mux.Handle("PATCH /api/v1/comments/{commentId}", require(http.HandlerFunc(comments.Update)))
	mux.Handle("DELETE /api/v1/comments/{commentId}", require(http.HandlerFunc(comments.Delete)))

	mux.Handle("POST /api/v1/tweets", require(http.HandlerFunc(tweets.Create)))
	mux.Handle("PATCH /api/v1/tweets/{tweetId}", require(http.HandlerFunc(tweets.Update)))
	mux.Handle("DELETE /api/v1/tweets/{tweetId}", require(http.HandlerFunc(tweets.Delete)))

	mux.Handle("POST /api/v1/likes/{kind}/{targetId}/toggle", require(http.HandlerFunc(likesH.Toggle)))
	mux.Handle("GET /api/v1/likes/videos", require(http.HandlerFunc(likesH.LikedVideos)))

	mux.Handle("POST /api/v1/subscriptions/{channelId}/toggle", require(http.HandlerFunc(subs.Toggle)))

	mux.Handle("POST /api/v1/playlists", require(http.HandlerFunc(playlists.Create)))
	mux.HandleFunc("GET /api/v1/playlists/{playlistId}", playlists.Get)
	mux.Handle("PATCH /api/v1/playlists/{playlistId}", require(http.HandlerFunc(playlists.Update)))
	mux.Handle("DELETE /api/v1/playlists/{playlistId}", require(http.HandlerFunc(playlists.Delete)))
	mux.Handle("POST /api/v1/playlists/{playlistId}/videos/{videoId}", require(http.HandlerFunc(playlists.AddVideo)))
	mux.Handle("DELETE /api/v1/playlists/{playlistId}/videos/{videoId}", require(http.HandlerFunc(playlists.RemoveVideo)))
}
