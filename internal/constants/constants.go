package constants

import "time"

const (
	DatabaseTimeout   = 5 * time.Second
	RequestTimeout    = 30 * time.Second
	ConsoleTimeout    = 5 * time.Second
	BridgeDialTimeout = 5 * time.Second
	HookTimeout       = 10 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	WorkerQueueSize  = 1024
	AuthorityBacklog = 256
)

const (
	LeaderboardLimit = 10
	TopN             = 3
)

const (
	TitleSourcePrefix = "title:"
	SetSourcePrefix   = "set:"
	PlayerPlaceholder = "{player}"
)

const (
	BootstrapSeasonName = "PreSeason"
	CollectionBaseXP    = 100
)
