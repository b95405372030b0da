package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type fetchCommand struct {
	Source   string `long:"source" description:"Slug of the source to fetch"`
	All      bool   `long:"all" description:"Fetch every configured source"`
	Query    string `long:"query" description:"Search query passed to the source"`
	Category string `long:"category" description:"Category passed to the source"`
	Sync     bool   `long:"sync" description:"Run in the foreground instead of queueing"`
}

type reindexCommand struct {
	Chunk int  `long:"chunk" default:"500" description:"Articles per bulk request"`
	Sync  bool `long:"sync" description:"Index in the foreground instead of queueing"`
}

type cleanIndexCommand struct {
	DryRun bool `long:"dry-run" description:"List trashed articles without removing them"`
}

type rawCfg struct {
	// Database configuration
	DBDriver   string `long:"db-driver" env:"DB_DRIVER" default:"postgres" choice:"postgres" choice:"memory" description:"Article store backend"`
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"news_user" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" description:"Database password (required for postgres)"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"news_comb" description:"Database name"`

	// Sources
	SourcesDir  string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	NewsAPIKey  string `long:"newsapi-key" env:"NEWSAPI_KEY" description:"NewsAPI key"`
	GuardianKey string `long:"guardian-key" env:"GUARDIAN_KEY" description:"Guardian Open Platform key"`
	NYTimesKey  string `long:"nytimes-key" env:"NYTIMES_KEY" description:"New York Times API key"`
	FinnhubKey  string `long:"finnhub-key" env:"FINNHUB_KEY" description:"Finnhub API token"`

	// Search engine
	ElasticURLs     []string `long:"elastic-url" env:"ELASTIC_URL" env-delim:"," description:"Elasticsearch address (repeatable)"`
	ElasticUsername string   `long:"elastic-username" env:"ELASTIC_USERNAME" description:"Elasticsearch username"`
	ElasticPassword string   `long:"elastic-password" env:"ELASTIC_PASSWORD" description:"Elasticsearch password"`
	ElasticIndex    string   `long:"elastic-index" env:"ELASTIC_INDEX" default:"news_articles" description:"Elasticsearch index name"`

	// Search cache
	RedisAddr     string        `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the search cache"`
	RedisPassword string        `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB       int           `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database"`
	CacheTTL      time.Duration `long:"cache-ttl" env:"CACHE_TTL" default:"5m" description:"Lifetime of cached search pages"`

	// Application configuration
	Port             string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount      int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers"`
	FetchParallelism int    `long:"fetch-parallelism" env:"FETCH_PARALLELISM" default:"4" description:"Sources fetched concurrently by a run over all sources"`
	FetchSchedule    string `long:"fetch-schedule" env:"FETCH_SCHEDULE" default:"0 * * * *" description:"Cron schedule for fetching all sources (empty disables)"`
	APIAccessKey     string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Serve      struct{}          `command:"serve" description:"Run the HTTP API, scheduler and workers"`
	Fetch      fetchCommand      `command:"fetch" description:"Fetch articles from one or all sources"`
	Reindex    reindexCommand    `command:"reindex" description:"Push every live article to the search index"`
	CleanIndex cleanIndexCommand `command:"clean-index" description:"Remove trashed articles from the search index"`
}

// Load reads .env (when present), then flags and environment from os.Args.
func Load() (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadArgs(os.Args[1:])
}

// LoadArgs parses the given arguments. It returns nil, nil when help was requested.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	parser.SubcommandsOptional = true

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	command := CommandServe
	if parser.Active != nil {
		command = parser.Active.Name
	}

	cfg := &Cfg{
		Command:          command,
		DBDriver:         raw.DBDriver,
		DBHost:           raw.DBHost,
		DBPort:           raw.DBPort,
		DBUser:           raw.DBUser,
		DBPassword:       raw.DBPassword,
		DBName:           raw.DBName,
		SourcesDir:       raw.SourcesDir,
		NewsAPIKey:       raw.NewsAPIKey,
		GuardianKey:      raw.GuardianKey,
		NYTimesKey:       raw.NYTimesKey,
		FinnhubKey:       raw.FinnhubKey,
		ElasticURLs:      raw.ElasticURLs,
		ElasticUsername:  raw.ElasticUsername,
		ElasticPassword:  raw.ElasticPassword,
		ElasticIndex:     raw.ElasticIndex,
		RedisAddr:        raw.RedisAddr,
		RedisPassword:    raw.RedisPassword,
		RedisDB:          raw.RedisDB,
		CacheTTL:         raw.CacheTTL,
		Port:             raw.Port,
		WorkerCount:      raw.WorkerCount,
		FetchParallelism: raw.FetchParallelism,
		FetchSchedule:    raw.FetchSchedule,
		APIAccessKey:     raw.APIAccessKey,
		Timezone:         raw.Timezone,
		Debug:            raw.Debug,
		Version:          GetVersion(),
		Fetch:            FetchOptions(raw.Fetch),
		Reindex:          ReindexOptions(raw.Reindex),
		CleanIndex:       CleanIndexOptions(raw.CleanIndex),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func validate(cfg *Cfg) error {
	if cfg.DBDriver == DriverPostgres && cfg.DBPassword == "" {
		return errors.New("database password is required for the postgres driver")
	}
	if cfg.Command == CommandFetch && cfg.Fetch.Source == "" && !cfg.Fetch.All {
		return errors.New("fetch requires --source or --all")
	}
	if cfg.Command == CommandFetch && cfg.Fetch.Source != "" && cfg.Fetch.All {
		return errors.New("fetch accepts either --source or --all, not both")
	}
	if cfg.WorkerCount < 1 {
		return fmt.Errorf("worker count must be positive, got %d", cfg.WorkerCount)
	}
	if cfg.FetchParallelism < 1 {
		return fmt.Errorf("fetch parallelism must be positive, got %d", cfg.FetchParallelism)
	}
	if cfg.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", cfg.CacheTTL)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
