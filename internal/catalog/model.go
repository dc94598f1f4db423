package catalog

import "time"

// Status is the download state recorded for an entry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusDownloaded Status = "downloaded"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDownloaded, StatusSkipped, StatusFailed:
		return true
	}
	return false
}

// Entry is one scraped ROM listing. SourceURL is the natural key.
type Entry struct {
	ID          int64    `yaml:"id,omitempty"`
	SourceURL   string   `yaml:"source_url"`
	Title       string   `yaml:"title"`
	Category    string   `yaml:"category,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Genre       string   `yaml:"genre,omitempty"`
	Region      string   `yaml:"region,omitempty"`
	Screenshots []string `yaml:"screenshots,omitempty"`

	// InterstitialLink is the public download page URL.
	InterstitialLink string `yaml:"interstitial_link,omitempty"`
	// ResolvedLink is the last CDN URL obtained for this entry. It is only
	// trusted by callers that opt out of immediate mode.
	ResolvedLink string    `yaml:"resolved_link,omitempty"`
	ResolvedAt   time.Time `yaml:"resolved_at,omitempty"`

	Download DownloadState `yaml:"download,omitempty"`

	CreatedAt time.Time `yaml:"created_at,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// DownloadState is the last recorded download outcome.
type DownloadState struct {
	Status Status    `yaml:"status,omitempty"`
	Path   string    `yaml:"path,omitempty"`
	Bytes  int64     `yaml:"bytes,omitempty"`
	SHA256 string    `yaml:"sha256,omitempty"`
	Error  string    `yaml:"error,omitempty"`
	RunID  string    `yaml:"run_id,omitempty"`
	At     time.Time `yaml:"at,omitempty"`
}

// HasResolvedLink reports whether a cached CDN link is present.
func (e *Entry) HasResolvedLink() bool {
	return e.ResolvedLink != ""
}
