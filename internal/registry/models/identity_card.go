package models

import (
	"time"

	id "qochi/pkg/domain"
)

// IdentityCard is the canonical identity record for a member. There is at
// most one card per member; approvals refresh or reissue it in place.
type IdentityCard struct {
	MemberID     id.MemberID  `json:"member_id"`
	CardNumber   string       `json:"card_number"`
	RequestID    id.RequestID `json:"request_id"`
	IssuedAt     time.Time    `json:"issued_at"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	ExpiredAt    *time.Time   `json:"expired_at,omitempty"`
	Replacements int          `json:"replacements"`
	// Version is zero until the card is first stored. Saves are
	// conditional on it.
	Version int `json:"-"`
}

// NewIdentityCard issues a first card for a member.
func NewIdentityCard(member id.MemberID, number string, req id.RequestID, expiresAt *time.Time, now time.Time) *IdentityCard {
	return &IdentityCard{
		MemberID:   member,
		CardNumber: number,
		RequestID:  req,
		IssuedAt:   now,
		ExpiresAt:  cloneTime(expiresAt),
	}
}

// Supersede issues a fresh card in place of prev, keeping its replacement
// count and stored version so the save replaces rather than inserts.
func (c *IdentityCard) Supersede(prev *IdentityCard) {
	if prev == nil {
		return
	}
	c.Replacements = prev.Replacements
	c.Version = prev.Version
}

// IsActive reports whether the card is still valid at now.
func (c *IdentityCard) IsActive(now time.Time) bool {
	if c == nil || c.ExpiredAt != nil {
		return false
	}
	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}

// Refresh re-stamps the card under a newer approval, keeping its number.
func (c *IdentityCard) Refresh(req id.RequestID, expiresAt *time.Time, now time.Time) {
	c.RequestID = req
	c.IssuedAt = now
	c.ExpiresAt = cloneTime(expiresAt)
	c.ExpiredAt = nil
}

// Reissue replaces a lost card with a new number.
func (c *IdentityCard) Reissue(number string, req id.RequestID, expiresAt *time.Time, now time.Time) {
	c.Refresh(req, expiresAt, now)
	c.CardNumber = number
	c.Replacements++
}

// Expire marks the card invalid.
func (c *IdentityCard) Expire(now time.Time) {
	c.ExpiredAt = &now
}

func (c *IdentityCard) Clone() *IdentityCard {
	v := *c
	v.ExpiresAt = cloneTime(c.ExpiresAt)
	v.ExpiredAt = cloneTime(c.ExpiredAt)
	return &v
}
