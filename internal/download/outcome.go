package download

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/blackwell-systems/romctl/internal/catalog"
	"github.com/blackwell-systems/romctl/internal/fetch"
	"github.com/blackwell-systems/romctl/internal/resolver"
)

// Error taxonomy of a download attempt.
var (
	ErrResolutionTimeout         = resolver.ErrUnresolved
	ErrNoInterstitialLink        = errors.New("entry has no interstitial link")
	ErrLinkExpired               = fetch.ErrLinkExpired
	ErrTransfer                  = fetch.ErrTransfer
	ErrRedirectProtocolViolation = fetch.ErrRedirectProtocolViolation
	ErrInvalidURL                = fetch.ErrInvalidURL
)

// Kind classifies a skip or failure.
type Kind string

const (
	KindResolutionTimeout         Kind = "resolution_timeout"
	KindNoInterstitialLink        Kind = "no_interstitial_link"
	KindLinkExpired               Kind = "link_expired"
	KindTransfer                  Kind = "transfer"
	KindRedirectProtocolViolation Kind = "redirect_protocol_violation"
	KindInvalidURL                Kind = "invalid_url"
	KindBrowser                   Kind = "browser"
	KindCancelled                 Kind = "cancelled"
)

// KindOf maps a transfer error to its Kind. Browser failures are classified
// where the resolver is called.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrRedirectProtocolViolation):
		return KindRedirectProtocolViolation
	case errors.Is(err, ErrLinkExpired):
		return KindLinkExpired
	case errors.Is(err, ErrResolutionTimeout):
		return KindResolutionTimeout
	case errors.Is(err, ErrNoInterstitialLink):
		return KindNoInterstitialLink
	case errors.Is(err, ErrInvalidURL):
		return KindInvalidURL
	default:
		return KindTransfer
	}
}

// Outcome is the result of one entry: Success, Skipped or Failed.
type Outcome interface {
	Status() catalog.Status
	String() string
}

// Success means the file is on disk. Cached is set when it already was.
type Success struct {
	Path   string
	Bytes  int64
	SHA256 string
	Cached bool
}

// Skipped means the entry could not be attempted; re-running later may help.
type Skipped struct {
	Reason Kind
	Detail string
}

// Failed means the download was attempted and gave up.
type Failed struct {
	Kind   Kind
	Detail string
}

func (Success) Status() catalog.Status { return catalog.StatusDownloaded }
func (Skipped) Status() catalog.Status { return catalog.StatusSkipped }
func (Failed) Status() catalog.Status  { return catalog.StatusFailed }

func (s Success) String() string {
	if s.Cached {
		return fmt.Sprintf("already present at %s", s.Path)
	}
	return fmt.Sprintf("saved %s (%s)", s.Path, humanize.Bytes(uint64(s.Bytes)))
}

func (s Skipped) String() string {
	return fmt.Sprintf("skipped (%s): %s", s.Reason, s.Detail)
}

func (f Failed) String() string {
	return fmt.Sprintf("failed (%s): %s", f.Kind, f.Detail)
}

// state converts an outcome to the catalog's stored form.
func state(o Outcome, runID string) catalog.DownloadState {
	st := catalog.DownloadState{Status: o.Status(), RunID: runID}
	switch v := o.(type) {
	case Success:
		st.Path, st.Bytes, st.SHA256 = v.Path, v.Bytes, v.SHA256
	case Skipped:
		st.Error = string(v.Reason) + ": " + v.Detail
	case Failed:
		st.Error = string(v.Kind) + ": " + v.Detail
	}
	return st
}
