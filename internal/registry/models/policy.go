package models

import (
	"time"

	dErrors "qochi/pkg/domain-errors"
)

// ExpiryPolicy is the validity window granted to each request kind on
// approval. A missing or zero entry means the approval never lapses.
type ExpiryPolicy map[RequestKind]time.Duration

// ExpiresAt returns the expiry for an approval at now, or nil.
func (p ExpiryPolicy) ExpiresAt(kind RequestKind, now time.Time) *time.Time {
	d := p[kind]
	if d <= 0 {
		return nil
	}
	t := now.Add(d)
	return &t
}

// Validate rejects unknown kinds and negative windows.
func (p ExpiryPolicy) Validate() error {
	for kind, d := range p {
		if !kind.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "expiry policy: unknown kind "+string(kind))
		}
		if d < 0 {
			return dErrors.New(dErrors.CodeValidation, "expiry policy: negative window for "+string(kind))
		}
	}
	return nil
}
