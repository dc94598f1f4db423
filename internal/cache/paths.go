package cache

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/blackwell-systems/romctl/internal/util"
)

// PartialSuffix marks files that are still being written.
const PartialSuffix = ".part"

// Manager handles the local download directory.
type Manager struct {
	baseDir     string
	perCategory bool
}

// New creates a Manager rooted at baseDir. With perCategory set, files are
// grouped into one subdirectory per category label.
func New(baseDir string, perCategory bool) *Manager {
	return &Manager{baseDir: baseDir, perCategory: perCategory}
}

// Dir returns the directory files for category land in.
// Layout: <baseDir>[/<category>]
func (m *Manager) Dir(category string) string {
	if !m.perCategory || category == "" {
		return m.baseDir
	}
	return filepath.Join(m.baseDir, util.SafeFilename(category, 64))
}

// Path returns the full destination path for a file.
func (m *Manager) Path(category, filename string) string {
	return filepath.Join(m.Dir(category), filename)
}

// Find looks for a completed file named base<ext> in the category's
// directory, where ext is one of exts. It lets callers detect a previous
// download before the extension (known only after resolution) is available.
// The remainder after base must be a single extension, so "Game" never
// matches "Game.2.zip". An empty exts accepts any single extension.
func (m *Manager) Find(category, base string, exts []string) (string, bool) {
	if base == "" {
		return "", false
	}
	prefix := filepath.Join(m.Dir(category), base)
	matches, err := filepath.Glob(globEscape(prefix) + ".*")
	if err != nil {
		return "", false
	}
	for _, p := range matches {
		ext := p[len(prefix):]
		if ext != filepath.Ext(p) || !allowedExt(ext, exts) {
			continue
		}
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

func allowedExt(ext string, exts []string) bool {
	if strings.EqualFold(ext, PartialSuffix) {
		return false
	}
	if len(exts) == 0 {
		return true
	}
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// EnsureDir creates the category directory.
func (m *Manager) EnsureDir(category string) error {
	return os.MkdirAll(m.Dir(category), 0750)
}

// CleanPartials removes leftover partial files under the base directory and
// returns how many were removed.
func (m *Manager) CleanPartials() (int, error) {
	n := 0
	err := filepath.WalkDir(m.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.Type().IsRegular() && strings.HasSuffix(path, PartialSuffix) {
			if err := os.Remove(path); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
