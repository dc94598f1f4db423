package resolver

import (
	"net/url"
	"path"
	"strings"

	"github.com/blackwell-systems/romctl/internal/util"
)

// LinkMatcher recognises CDN download URLs by host pattern or file extension.
type LinkMatcher struct {
	hosts []string
	exts  []string
}

// NewLinkMatcher builds a matcher. Host patterns such as "cdn." match at the
// start of the host or after a "." or "-"; extensions include the dot.
func NewLinkMatcher(hosts, exts []string) LinkMatcher {
	m := LinkMatcher{}
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			m.hosts = append(m.hosts, h)
		}
	}
	m.exts = util.NormalizeExts(exts)
	return m
}

// Match reports whether raw is an http(s) URL that looks like a download.
func (m LinkMatcher) Match(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range m.hosts {
		if strings.HasPrefix(host, h) || strings.Contains(host, "."+h) || strings.Contains(host, "-"+h) {
			return true
		}
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return false
	}
	for _, e := range m.exts {
		if ext == e {
			return true
		}
	}
	return false
}

// ctaTargets returns the absolute and path-only forms of the download page
// URL the call-to-action points at: the interstitial URL with "/1" appended.
func ctaTargets(interstitial string) (abs, rel string, err error) {
	u, err := url.Parse(interstitial)
	if err != nil {
		return "", "", err
	}
	u.RawQuery, u.Fragment = "", ""
	u.Path = strings.TrimRight(u.Path, "/") + "/1"
	u.RawPath = ""
	return u.String(), u.EscapedPath(), nil
}

// ctaSelector matches an anchor linking to either form of the target.
func ctaSelector(abs, rel string) string {
	return `a[href="` + cssEscape(abs) + `"], a[href="` + cssEscape(rel) + `"]`
}

func cssEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// isDownloadPage reports whether candidate is the download page for target:
// same origin and the same path, ignoring a trailing slash and the query.
func isDownloadPage(target, candidate string) bool {
	t, err := url.Parse(target)
	if err != nil {
		return false
	}
	c, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return strings.EqualFold(t.Scheme, c.Scheme) &&
		strings.EqualFold(t.Host, c.Host) &&
		strings.TrimRight(t.Path, "/") == strings.TrimRight(c.Path, "/")
}

// absolute resolves href against base.
func absolute(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}
