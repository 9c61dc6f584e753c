// Package models holds the ledger's records.
package models

import (
	"slices"
	"time"

	"github.com/dmitrijs2005/sealpost/internal/deliverytime"
)

// Letter is immutable once created. Content is the base64 encoding of an
// encrypted object; everything else is public metadata.
type Letter struct {
	ID              uint64
	Title           string
	Sender          string
	Content         string
	ContentIdentity string
	Recipients      []string
	DeliveryTimeMs  int64
	IsPublic        bool
	AttachBlobID    string
	AttachIdentity  string
	FileName        string
	CreatedAtMs     int64
}

// LetterInput is what a sender submits to create a letter.
type LetterInput struct {
	Title          string
	Content        string
	Recipients     []string
	DeliveryTimeMs int64
	IsPublic       bool
	AttachBlobID   string
	AttachIdentity string
	FileName       string
	ClockRef       string
}

func (l *Letter) DeliveryTime() time.Time {
	return time.UnixMilli(l.DeliveryTimeMs)
}

func (l *Letter) CreatedAt() time.Time {
	return time.UnixMilli(l.CreatedAtMs)
}

// Status is derived from the clock, never stored.
func (l *Letter) Status(now time.Time) deliverytime.Status {
	return deliverytime.StatusAt(now, l.DeliveryTime())
}

func (l *Letter) HasAttachment() bool {
	return l.AttachBlobID != ""
}

// IsParty reports whether addr is the sender or one of the recipients.
func (l *Letter) IsParty(addr string) bool {
	return addr == l.Sender || slices.Contains(l.Recipients, addr)
}
