package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent is sent by both the browser and the fetcher. The CDN
// rejects requests whose agent differs from the one that resolved the link.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultPath returns the default config file path.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "romctl", "config.yml")
}

// Load reads the config from path (or ROMCTL_CONFIG, or the default path)
// and the environment. A missing file is not an error: defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ROMCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("ROMCTL_CONFIG")
	}
	if path == "" {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// Not finding the config file is fine, `romctl config init` creates it.
		if !os.IsNotExist(err) {
			if _, isCfgNotFound := err.(viper.ConfigFileNotFoundError); !isCfgNotFound {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	keyEnv := cfg.RetroAchievements.APIKeyEnv
	if keyEnv == "" {
		keyEnv = "RA_API_KEY"
	}
	cfg.RetroAchievements.APIKey = os.Getenv(keyEnv)

	cfg.Download.Dir = ExpandHome(cfg.Download.Dir)
	cfg.Database.Path = ExpandHome(cfg.Database.Path)
	cfg.Browser.Path = ExpandHome(cfg.Browser.Path)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.romsfun.com")
	v.SetDefault("site.user_agent", DefaultUserAgent)
	v.SetDefault("site.accept_language", "en-US,en;q=0.9")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.window_size", "1920,1080")

	v.SetDefault("resolver.navigation_timeout", 30*time.Second)
	v.SetDefault("resolver.countdown_settle", 8*time.Second)
	v.SetDefault("resolver.button_timeout", 10*time.Second)
	v.SetDefault("resolver.post_click_settle", 2500*time.Millisecond)
	v.SetDefault("resolver.popup_timeout", 5*time.Second)
	v.SetDefault("resolver.overall_timeout", 90*time.Second)
	v.SetDefault("resolver.button_selector", "#download-button, a.btn-download, button.download-btn")
	v.SetDefault("resolver.cdn_hosts", []string{"cdn.", "dl.", "download.", "files.", "storage."})
	v.SetDefault("resolver.archive_extensions", []string{".zip", ".7z", ".rar", ".iso", ".chd", ".cso", ".rvz", ".nsp", ".xci", ".3ds", ".cia", ".nds", ".gba", ".gbc", ".gb", ".nes", ".sfc", ".smc", ".n64", ".z64", ".bin", ".gz"})

	v.SetDefault("download.dir", "./downloads")
	v.SetDefault("download.per_category", false)
	v.SetDefault("download.max_retries", 3)
	v.SetDefault("download.retry_delay", 2*time.Second)
	v.SetDefault("download.entry_delay", 1500*time.Millisecond)
	v.SetDefault("download.timeout", 10*time.Minute)
	v.SetDefault("download.immediate", true)
	v.SetDefault("download.max_filename", 100)

	v.SetDefault("scrape.entry_selector", "article a[href*='/roms/'], .game-list a.game-title")
	v.SetDefault("scrape.next_selector", "a[rel='next'], .pagination a.next")
	v.SetDefault("scrape.max_pages", 0)
	v.SetDefault("scrape.random_delay", 2*time.Second)
	v.SetDefault("scrape.region_priority", []string{"USA", "World", "Europe", "Japan"})
	v.SetDefault("scrape.exclude_variants", []string{"demo", "beta", "proto", "sample", "kiosk"})

	v.SetDefault("database.path", defaultDatabasePath())

	v.SetDefault("retroachievements.api_base", "https://retroachievements.org/API")
	v.SetDefault("retroachievements.api_key_env", "RA_API_KEY")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Save writes the config to path, or the default path when empty.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	return enc.Encode(cfg)
}

// ExpandHome expands a leading ~/ in a path.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

func defaultDatabasePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "romctl", "catalog.db")
}
