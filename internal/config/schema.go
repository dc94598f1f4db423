package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config is the top-level romctl configuration.
type Config struct {
	Site              SiteConfig              `mapstructure:"site" yaml:"site"`
	Browser           BrowserConfig           `mapstructure:"browser" yaml:"browser"`
	Resolver          ResolverConfig          `mapstructure:"resolver" yaml:"resolver"`
	Download          DownloadConfig          `mapstructure:"download" yaml:"download"`
	Scrape            ScrapeConfig            `mapstructure:"scrape" yaml:"scrape"`
	Database          DatabaseConfig          `mapstructure:"database" yaml:"database"`
	RetroAchievements RetroAchievementsConfig `mapstructure:"retroachievements" yaml:"retroachievements"`
	Log               LogConfig               `mapstructure:"log" yaml:"log"`
}

// SiteConfig describes the ROM-listing site being scraped.
type SiteConfig struct {
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	UserAgent      string `mapstructure:"user_agent" yaml:"user_agent"`
	AcceptLanguage string `mapstructure:"accept_language" yaml:"accept_language"`
}

// BrowserConfig controls the headless browser process.
type BrowserConfig struct {
	Path       string `mapstructure:"path" yaml:"path,omitempty"` // auto-detected when empty
	Headless   bool   `mapstructure:"headless" yaml:"headless"`
	NoSandbox  bool   `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	WindowSize string `mapstructure:"window_size" yaml:"window_size"`
}

// ResolverConfig holds the timings and patterns of the download-link flow.
type ResolverConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	CountdownSettle   time.Duration `mapstructure:"countdown_settle" yaml:"countdown_settle"`
	ButtonTimeout     time.Duration `mapstructure:"button_timeout" yaml:"button_timeout"`
	PostClickSettle   time.Duration `mapstructure:"post_click_settle" yaml:"post_click_settle"`
	PopupTimeout      time.Duration `mapstructure:"popup_timeout" yaml:"popup_timeout"`
	OverallTimeout    time.Duration `mapstructure:"overall_timeout" yaml:"overall_timeout"`
	ButtonSelector    string        `mapstructure:"button_selector" yaml:"button_selector"`
	CDNHosts          []string      `mapstructure:"cdn_hosts" yaml:"cdn_hosts"`
	ArchiveExtensions []string      `mapstructure:"archive_extensions" yaml:"archive_extensions"`
}

// DownloadConfig holds orchestrator and fetcher settings.
type DownloadConfig struct {
	Dir         string        `mapstructure:"dir" yaml:"dir"`
	PerCategory bool          `mapstructure:"per_category" yaml:"per_category"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	EntryDelay  time.Duration `mapstructure:"entry_delay" yaml:"entry_delay"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Immediate   bool          `mapstructure:"immediate" yaml:"immediate"`
	MaxFilename int           `mapstructure:"max_filename" yaml:"max_filename"`
}

// ScrapeConfig holds selectors for the listing crawl.
type ScrapeConfig struct {
	EntrySelector   string        `mapstructure:"entry_selector" yaml:"entry_selector"`
	NextSelector    string        `mapstructure:"next_selector" yaml:"next_selector"`
	MaxPages        int           `mapstructure:"max_pages" yaml:"max_pages"`
	RandomDelay     time.Duration `mapstructure:"random_delay" yaml:"random_delay"`
	RegionPriority  []string      `mapstructure:"region_priority" yaml:"region_priority"`
	ExcludeVariants []string      `mapstructure:"exclude_variants" yaml:"exclude_variants"`
}

// DatabaseConfig locates the SQLite catalog.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// RetroAchievementsConfig holds RetroAchievements API settings.
type RetroAchievementsConfig struct {
	APIBase   string `mapstructure:"api_base" yaml:"api_base"`
	Username  string `mapstructure:"username" yaml:"username"`
	APIKeyEnv string `mapstructure:"api_key_env" yaml:"api_key_env"`
	APIKey    string `mapstructure:"-" yaml:"-"` // resolved at runtime, never written
}

// LogConfig selects the diagnostic log level and format.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Origin returns the scheme://host of the site base URL, used for the
// Origin header of CDN requests.
func (s SiteConfig) Origin() string {
	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// Validate reports every setting that would make downloads misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.Download.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("download.max_retries must be >= 1, got %d", c.Download.MaxRetries))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download.timeout must be positive"))
	}
	if c.Resolver.NavigationTimeout <= 0 || c.Resolver.OverallTimeout <= 0 {
		errs = append(errs, errors.New("resolver timeouts must be positive"))
	}
	if c.Resolver.ButtonSelector == "" {
		errs = append(errs, errors.New("resolver.button_selector is empty"))
	}
	if c.Download.Dir == "" {
		errs = append(errs, errors.New("download.dir is empty"))
	}
	return errors.Join(errs...)
}
