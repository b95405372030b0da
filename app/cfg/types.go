package cfg

import "time"

const (
	CommandServe      = "serve"
	CommandFetch      = "fetch"
	CommandReindex    = "reindex"
	CommandCleanIndex = "clean-index"

	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Cfg struct {
	// Active sub-command
	Command string

	// Database configuration
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Sources
	SourcesDir  string
	NewsAPIKey  string
	GuardianKey string
	NYTimesKey  string
	FinnhubKey  string

	// Search engine, empty addresses disable it
	ElasticURLs     []string
	ElasticUsername string
	ElasticPassword string
	ElasticIndex    string

	// Search cache, empty address disables it
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Application configuration
	Port             string
	WorkerCount      int
	FetchParallelism int
	FetchSchedule    string
	APIAccessKey     string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string

	Fetch      FetchOptions
	Reindex    ReindexOptions
	CleanIndex CleanIndexOptions
}

type FetchOptions struct {
	Source   string
	All      bool
	Query    string
	Category string
	Sync     bool
}

type ReindexOptions struct {
	Chunk int
	Sync  bool
}

type CleanIndexOptions struct {
	DryRun bool
}
