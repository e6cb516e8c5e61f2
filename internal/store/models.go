package store

import (
	"encoding/json"
	"time"
)

const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Page is the persisted document row. Blocks and Theme are stored as opaque
// JSON; the store never validates them — every reader runs them through the
// block normalizer and theme decoder. Body and Images are derived caches,
// always recomputed from Blocks on write, never patched on their own.
type Page struct {
	ID          string
	TenantID    string
	Title       string
	Slug        string
	Status      string
	Body        string
	Images      []string
	Blocks      json.RawMessage
	Theme       json.RawMessage
	PublishAt   *time.Time
	UnpublishAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContentPatch carries everything that must change together when a page's
// blocks mutate: the raw blocks, the synced theme, and the recomputed caches.
type ContentPatch struct {
	Title       string
	Blocks      json.RawMessage
	Theme       json.RawMessage
	Body        string
	Images      []string
	PublishAt   *time.Time
	UnpublishAt *time.Time
}

// BlocksPatch updates blocks plus caches without touching title or theme,
// used when a graph node deletion cascades into sibling pages.
type BlocksPatch struct {
	Blocks json.RawMessage
	Body   string
	Images []string
}

type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Membership struct {
	TenantID  string
	UserID    string
	Role      string
	CreatedAt time.Time
}

// BillingAccount mirrors the payment provider's view of a tenant. The core
// reads plan state, it never computes it.
type BillingAccount struct {
	TenantID     string
	CustomerID   string
	Tier         string
	PublishLimit int
	SyncedAt     time.Time
}
