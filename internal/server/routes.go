package server

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/middleware"
)

const AdminServicePath = "/titleplus.v1.Admin/"

// NewHandler mounts every admin procedure under AdminServicePath.
func NewHandler(s *AdminServer, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	unary(mux, "JoinPlayer", s.JoinPlayer)
	unary(mux, "LeavePlayer", s.LeavePlayer)
	unary(mux, "InvalidatePlayer", s.InvalidatePlayer)

	unary(mux, "GetStat", s.GetStat)
	unary(mux, "SetBaseStat", s.SetBaseStat)
	unary(mux, "AddModifier", s.AddModifier)
	unary(mux, "RemoveModifier", s.RemoveModifier)

	unary(mux, "GrantTitle", s.GrantTitle)
	unary(mux, "EquipTitle", s.EquipTitle)
	unary(mux, "UnequipTitle", s.UnequipTitle)
	unary(mux, "RevokeTitle", s.RevokeTitle)
	unary(mux, "GetTitles", s.GetTitles)

	unary(mux, "GetSeason", s.GetSeason)
	unary(mux, "SetSeasonState", s.SetSeasonState)

	unary(mux, "IncrementWeekly", s.IncrementWeekly)
	unary(mux, "EvaluateWeekly", s.EvaluateWeekly)
	unary(mux, "IsTop3", s.IsTop3)

	unary(mux, "AddProgress", s.AddProgress)
	unary(mux, "GetProgress", s.GetProgress)
	unary(mux, "Trigger", s.Trigger)

	unary(mux, "RegisterCollection", s.RegisterCollection)
	unary(mux, "GetCollection", s.GetCollection)

	unary(mux, "Reload", s.Reload)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.RequestID(logger)(c.Handler(mux))
}

func unary[Req, Res any](mux *http.ServeMux, name string, fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error)) {
	procedure := AdminServicePath + name
	mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, connect.WithCodec(jsonCodec{})))
}
