package server

import (
	"context"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RangGames/CreeperPrefixSystem/internal/domain"
	"github.com/RangGames/CreeperPrefixSystem/internal/titleplus"
)

type AdminServer struct {
	engine *titleplus.Engine
}

func NewAdminServer(engine *titleplus.Engine) *AdminServer {
	return &AdminServer{engine: engine}
}

func parsePlayer(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid player id %q", raw))
	}
	return id, nil
}

func result(v bool) *connect.Response[ResultResponse] {
	return connect.NewResponse(&ResultResponse{OK: v})
}

func (s *AdminServer) JoinPlayer(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[ResultResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	name := req.Msg.Name
	if name == "" {
		name = player.String()
	}
	if _, err := s.engine.Join(ctx, player, name); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return result(true), nil
}

func (s *AdminServer) LeavePlayer(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[ResultResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	s.engine.Leave(player)
	return result(true), nil
}

func (s *AdminServer) InvalidatePlayer(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[ResultResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	s.engine.InvalidatePlayer(player)
	return result(true), nil
}

func (s *AdminServer) GetStat(ctx context.Context, req *connect.Request[StatRequest]) (*connect.Response[StatResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(s.statResponse(player, req.Msg.Stat)), nil
}

func (s *AdminServer) SetBaseStat(ctx context.Context, req *connect.Request[StatRequest]) (*connect.Response[StatResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	if _, known := s.engine.StatDefinition(req.Msg.Stat); !known {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("unknown stat %q", req.Msg.Stat))
	}
	s.engine.SetBaseStat(ctx, player, req.Msg.Stat, req.Msg.Value)
	return connect.NewResponse(s.statResponse(player, req.Msg.Stat)), nil
}

func (s *AdminServer) AddModifier(ctx context.Context, req *connect.Request[ModifierRequest]) (*connect.Response[StatResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	op, err := domain.ParseOperation(req.Msg.Op)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if req.Msg.Source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	var expireAt *time.Time
	if req.Msg.ExpireAt > 0 {
		t := time.UnixMilli(req.Msg.ExpireAt).UTC()
		expireAt = &t
	}
	s.engine.AddModifier(ctx, player, req.Msg.Stat, req.Msg.Source, op, req.Msg.Value, expireAt)
	return connect.NewResponse(s.statResponse(player, req.Msg.Stat)), nil
}

func (s *AdminServer) RemoveModifier(ctx context.Context, req *connect.Request[ModifierRequest]) (*connect.Response[ResultResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	return result(s.engine.RemoveModifier(ctx, player, req.Msg.Stat, req.Msg.Source)), nil
}

func (s *AdminServer) statResponse(player uuid.UUID, statID string) *StatResponse {
	resp := &StatResponse{Stat: statID, Value: s.engine.GetStat(player, statID)}
	for _, m := range s.engine.Modifiers(player, statID) {
		resp.Modifiers = append(resp.Modifiers, Modifier{
			Source:   m.SourceID,
			Op:       string(m.Op),
			Value:    m.Value,
			ExpireAt: m.ExpireAt,
		})
	}
	return resp
}

func (s *AdminServer) GrantTitle(ctx context.Context, req *connect.Request[TitleRequest]) (*connect.Response[ResultResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	return result(s.engine.GrantTitle(ctx, player, req.Msg.Title)), nil
}

func (s *AdminServer) EquipTitle(ctx context.Context, req *connect.Request[TitleRequest]) (*connect.Response[ResultResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	return result(s.engine.EquipTitle(ctx, player, req.Msg.Title)), nil
}

func (s *AdminServer) UnequipTitle(ctx context.Context, req *connect.Request[TitleRequest]) (*connect.Response[ResultResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	return result(s.engine.UnequipTitle(ctx, player)), nil
}

func (s *AdminServer) RevokeTitle(ctx context.Context, req *connect.Request[TitleRequest]) (*connect.Response[ResultResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	return result(s.engine.RevokeTitle(ctx, player, req.Msg.Title)), nil
}

func (s *AdminServer) GetTitles(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[TitlesResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	resp := &TitlesResponse{
		Owned:      nonNil(s.engine.OwnedTitles(player)),
		ActiveSets: nonNil(s.engine.ActiveSets(player)),
	}
	if equipped, ok := s.engine.EquippedTitle(player); ok {
		resp.Equipped = equipped
	}
	return connect.NewResponse(resp), nil
}

func (s *AdminServer) GetSeason(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[SeasonResponse], error) {
	return connect.NewResponse(s.seasonResponse()), nil
}

func (s *AdminServer) SetSeasonState(ctx context.Context, req *connect.Request[SeasonRequest]) (*connect.Response[SeasonResponse], error) {
	state, err := domain.ParseSeasonState(req.Msg.State)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if !s.engine.IsSeasonAuthority() {
		return nil, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("this node is a season follower"))
	}
	s.engine.SetSeasonState(ctx, state)
	return connect.NewResponse(s.seasonResponse()), nil
}

func (s *AdminServer) seasonResponse() *SeasonResponse {
	snap := s.engine.Season()
	return &SeasonResponse{
		ID:        snap.ID,
		Name:      snap.Name,
		State:     string(snap.State),
		Authority: s.engine.IsSeasonAuthority(),
	}
}

func (s *AdminServer) IncrementWeekly(ctx context.Context, req *connect.Request[WeeklyRequest]) (*connect.Response[WeeklyResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	metric := s.metric(req.Msg.Metric)
	s.engine.IncrementWeekly(player, metric, req.Msg.Delta)
	return connect.NewResponse(&WeeklyResponse{WeekKey: s.engine.WeekKey(), Metric: metric}), nil
}

func (s *AdminServer) EvaluateWeekly(ctx context.Context, req *connect.Request[WeeklyRequest]) (*connect.Response[WeeklyResponse], error) {
	metric := s.metric(req.Msg.Metric)
	standings, err := s.engine.EvaluateWeekly(ctx, metric)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("metric", metric).Msg("weekly evaluation failed")
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	resp := &WeeklyResponse{WeekKey: s.engine.WeekKey(), Metric: metric}
	for i, st := range standings {
		resp.Standings = append(resp.Standings, Standing{
			Rank:       i + 1,
			Player:     st.PlayerID.String(),
			Value:      st.Value,
			Annotation: st.Annotation,
		})
	}
	if len(req.Msg.Titles) > 0 {
		resp.Awarded = s.engine.RecordWeeklyAwards(ctx, metric, req.Msg.Titles)
	}
	return connect.NewResponse(resp), nil
}

func (s *AdminServer) IsTop3(ctx context.Context, req *connect.Request[WeeklyRequest]) (*connect.Response[ResultResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	if req.Msg.Metric == "" {
		return result(s.engine.IsTop3(player)), nil
	}
	return result(s.engine.IsTop3For(req.Msg.Metric, player)), nil
}

func (s *AdminServer) metric(m string) string {
	if m == "" {
		return s.engine.DefaultMetric()
	}
	return m
}

func (s *AdminServer) AddProgress(ctx context.Context, req *connect.Request[ProgressRequest]) (*connect.Response[ProgressResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	s.engine.AddProgress(ctx, player, req.Msg.Title, req.Msg.Amount)
	return connect.NewResponse(&ProgressResponse{Title: req.Msg.Title, Value: s.engine.GetProgress(player, req.Msg.Title)}), nil
}

func (s *AdminServer) GetProgress(ctx context.Context, req *connect.Request[ProgressRequest]) (*connect.Response[ProgressResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&ProgressResponse{Title: req.Msg.Title, Value: s.engine.GetProgress(player, req.Msg.Title)}), nil
}

func (s *AdminServer) Trigger(ctx context.Context, req *connect.Request[TriggerRequest]) (*connect.Response[ResultResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	kind, err := domain.ParseRequirementKind(req.Msg.Kind)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	switch kind {
	case domain.RequirementBreak:
		s.engine.HandleBreak(ctx, player, req.Msg.Key, req.Msg.Amount)
	case domain.RequirementSell:
		s.engine.HandleSale(ctx, player, req.Msg.Key, req.Msg.Amount)
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s requirements are not trigger driven", kind))
	}
	return result(true), nil
}

func (s *AdminServer) RegisterCollection(ctx context.Context, req *connect.Request[CollectionRequest]) (*connect.Response[CollectionResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	_, registered := s.engine.RegisterCollection(ctx, player, req.Msg.Key, req.Msg.GrantXP, req.Msg.Announce)
	resp := s.collectionResponse(player)
	resp.Registered = registered
	return connect.NewResponse(resp), nil
}

func (s *AdminServer) GetCollection(ctx context.Context, req *connect.Request[PlayerRequest]) (*connect.Response[CollectionResponse], error) {
	player, err := parsePlayer(req.Msg.Player)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(s.collectionResponse(player)), nil
}

func (s *AdminServer) collectionResponse(player uuid.UUID) *CollectionResponse {
	resp := &CollectionResponse{Entries: []CollectionEntry{}, Achievements: []string{}}
	for _, e := range s.engine.CollectionEntries(player) {
		resp.Entries = append(resp.Entries, CollectionEntry{
			Key:          e.Key,
			RegisteredAt: e.RegisteredAt,
			PlayerRank:   e.PlayerRank,
			GlobalRank:   e.GlobalRank,
		})
	}
	for _, c := range s.engine.Achievements(player) {
		resp.Achievements = append(resp.Achievements, c.AchievementID)
	}
	return resp
}

func (s *AdminServer) Reload(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ReloadResponse], error) {
	resp := &ReloadResponse{Problems: []string{}}
	for _, err := range s.engine.Reload() {
		resp.Problems = append(resp.Problems, err.Error())
	}
	return connect.NewResponse(resp), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
