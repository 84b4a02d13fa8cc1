package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Supabase  SupabaseConfig
	Storage   StorageConfig
	Scheduler SchedulerConfig
	Scraper   ScraperConfig
	S3        S3Config
	DBPath    string
	DataDir   string
	Sites     map[string]*SiteConfig
}

type SupabaseConfig struct {
	URL        string
	AnonKey    string
	ServiceKey string
	DBURL      string // direct Postgres connection, bypasses PostgREST
}

type StorageConfig struct {
	Table string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	DelayMS     int
	MaxPages    int
	MaxRetries  int
	ArchiveImgs bool
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// SiteConfig is one entry from config/sites/*.yaml. Selector lists are
// cascades: tried in order, first match wins.
type SiteConfig struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Handler     string            `yaml:"handler"`
	BaseURL     string            `yaml:"base_url"`
	RateLimitMS int               `yaml:"rate_limit_ms"`
	Endpoints   map[string]string `yaml:"endpoints"`
	Selectors   SelectorConfig    `yaml:"selectors"`
	EntryURLs   []string          `yaml:"entry_urls"`
}

// SelectorConfig carries the per-site CSS selector cascades. Sites drift;
// keeping these in YAML means a markup change is a config edit, not a build.
type SelectorConfig struct {
	Container []string `yaml:"container"`
	Title     []string `yaml:"title"`
	Price     []string `yaml:"price"`
	Location  []string `yaml:"location"`
	Image     []string `yaml:"image"`
	Link      []string `yaml:"link"`
	NextPage  []string `yaml:"next_page"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Supabase: SupabaseConfig{
			URL:        os.Getenv("SUPABASE_URL"),
			AnonKey:    os.Getenv("SUPABASE_ANON_KEY"),
			ServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
			DBURL:      os.Getenv("SUPABASE_DB_URL"),
		},
		Storage: StorageConfig{
			Table: getEnv("SUPABASE_TABLE", "property_listings"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Scraper: ScraperConfig{
			DelayMS:     getEnvInt("SCRAPE_DELAY_MS", 500),
			MaxPages:    getEnvInt("SCRAPE_MAX_PAGES", 5),
			MaxRetries:  getEnvInt("SCRAPE_MAX_RETRIES", 3),
			ArchiveImgs: os.Getenv("ARCHIVE_IMAGES") == "true",
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "ap-northeast-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DBPath:  getEnv("DB_PATH", "scraper.db"),
		DataDir: getEnv("DATA_DIR", "data"),
		Sites:   make(map[string]*SiteConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	configDir := getEnv("SITES_DIR", "config/sites")
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return err
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
