package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/callboard/callboard/internal/api/v1"
	"github.com/callboard/callboard/internal/api/ws"
	"github.com/callboard/callboard/internal/store/postgres"
	redisstore "github.com/callboard/callboard/internal/store/redis"
)

func registerAPIRoutes(api huma.API, store *postgres.Store, pub *redisstore.PubSub) {
	v1.RegisterWorkspaceRoutes(api, store)
	v1.RegisterObjectRoutes(api, store, pub)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/workspace/{workspaceID}", hub.ServeWorkspace)
}
