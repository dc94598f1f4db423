package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// unknownStep is the reporting interval when the total size is unknown.
const unknownStep = 1 << 20

// progressWriter reports at every 10% of total, or every MiB when the total
// is unknown.
type progressWriter struct {
	total    int64
	done     int64
	nextStep int64
	fn       ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.done += int64(len(b))
	if p.fn == nil {
		return len(b), nil
	}
	if p.total <= 0 {
		if p.done/unknownStep > p.nextStep {
			p.nextStep = p.done / unknownStep
			p.fn(p.done, -1)
		}
		return len(b), nil
	}
	step := p.done * 10 / p.total
	if step > 10 {
		step = 10
	}
	if step > p.nextStep {
		p.nextStep = step
		p.fn(p.done, p.total)
	}
	return len(b), nil
}

type hashWriter struct {
	h hash.Hash
}

func newHashWriter() *hashWriter {
	return &hashWriter{h: sha256.New()}
}

func (w *hashWriter) Write(b []byte) (int, error) {
	return w.h.Write(b)
}

func (w *hashWriter) sum() string {
	return hex.EncodeToString(w.h.Sum(nil))
}
