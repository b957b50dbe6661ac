package server

import "time"

type PlayerRequest struct {
	Player string `json:"player"`
	Name   string `json:"name,omitempty"`
}

type StatRequest struct {
	Player string  `json:"player"`
	Stat   string  `json:"stat"`
	Value  float64 `json:"value,omitempty"`
}

type StatResponse struct {
	Stat      string     `json:"stat"`
	Value     float64    `json:"value"`
	Modifiers []Modifier `json:"modifiers,omitempty"`
}

type Modifier struct {
	Source   string     `json:"source"`
	Op       string     `json:"op"`
	Value    float64    `json:"value"`
	ExpireAt *time.Time `json:"expireAt,omitempty"`
}

type ModifierRequest struct {
	Player string  `json:"player"`
	Stat   string  `json:"stat"`
	Source string  `json:"source"`
	Op     string  `json:"op,omitempty"`
	Value  float64 `json:"value,omitempty"`
	// ExpireAt is unix milliseconds; zero means permanent.
	ExpireAt int64 `json:"expireAt,omitempty"`
}

type TitleRequest struct {
	Player string `json:"player"`
	Title  string `json:"title"`
}

type ResultResponse struct {
	OK bool `json:"ok"`
}

type TitlesResponse struct {
	Owned      []string `json:"owned"`
	Equipped   string   `json:"equipped,omitempty"`
	ActiveSets []string `json:"activeSets"`
}

type Empty struct{}

type SeasonRequest struct {
	State string `json:"state"`
}

type SeasonResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	Authority bool   `json:"authority"`
}

type WeeklyRequest struct {
	Player string   `json:"player,omitempty"`
	Metric string   `json:"metric,omitempty"`
	Delta  int64    `json:"delta,omitempty"`
	Titles []string `json:"titles,omitempty"`
}

type Standing struct {
	Rank       int    `json:"rank"`
	Player     string `json:"player"`
	Value      int64  `json:"value"`
	Annotation string `json:"annotation,omitempty"`
}

type WeeklyResponse struct {
	WeekKey   string     `json:"weekKey"`
	Metric    string     `json:"metric"`
	Standings []Standing `json:"standings,omitempty"`
	Awarded   int        `json:"awarded,omitempty"`
}

type ProgressRequest struct {
	Player string `json:"player"`
	Title  string `json:"title"`
	Amount int64  `json:"amount,omitempty"`
}

type ProgressResponse struct {
	Title string `json:"title"`
	Value int64  `json:"value"`
}

type TriggerRequest struct {
	Player string `json:"player"`
	Kind   string `json:"kind"`
	Key    string `json:"key"`
	Amount int64  `json:"amount"`
}

type CollectionRequest struct {
	Player   string `json:"player"`
	Key      string `json:"key"`
	GrantXP  bool   `json:"grantXp"`
	Announce bool   `json:"announce"`
}

type CollectionEntry struct {
	Key          string    `json:"key"`
	RegisteredAt time.Time `json:"registeredAt"`
	PlayerRank   int       `json:"playerRank"`
	GlobalRank   int64     `json:"globalRank,omitempty"`
}

type CollectionResponse struct {
	Registered   bool              `json:"registered,omitempty"`
	Entries      []CollectionEntry `json:"entries"`
	Achievements []string          `json:"achievements"`
}

type ReloadResponse struct {
	Problems []string `json:"problems"`
}
