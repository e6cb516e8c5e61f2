package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional update loses.
var ErrConflict = errors.New("conflict")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const pageColumns = `id, tenant_id, title, slug, status, body, images, blocks, theme, publish_at, unpublish_at, created_at, updated_at`

func scanPage(row interface{ Scan(...any) error }) (Page, error) {
	var (
		p      Page
		images []byte
	)
	err := row.Scan(
		&p.ID, &p.TenantID, &p.Title, &p.Slug, &p.Status,
		&p.Body, &images, &p.Blocks, &p.Theme,
		&p.PublishAt, &p.UnpublishAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, ErrNotFound
	}
	if err != nil {
		return Page{}, fmt.Errorf("scan page: %w", err)
	}
	if len(images) > 0 {
		_ = json.Unmarshal(images, &p.Images)
	}
	return p, nil
}

func encodeImages(images []string) []byte {
	if images == nil {
		images = []string{}
	}
	data, _ := json.Marshal(images)
	return data
}

func (s *PostgresStore) InsertPage(ctx context.Context, p Page) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (`+pageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.TenantID, p.Title, p.Slug, p.Status,
		p.Body, encodeImages(p.Images), p.Blocks, p.Theme,
		p.PublishAt, p.UnpublishAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPage(ctx context.Context, tenantID, id string) (Page, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	return scanPage(row)
}

func (s *PostgresStore) GetPublishedBySlug(ctx context.Context, slug string) (Page, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE slug = $1 AND status = $2`, slug, StatusPublished)
	return scanPage(row)
}

func (s *PostgresStore) ListPages(ctx context.Context, tenantID string) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (s *PostgresStore) SlugExists(ctx context.Context, tenantID, slug string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pages WHERE tenant_id = $1 AND slug = $2)`, tenantID, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

// UpdatePageContent applies a full content patch. Blocks, theme and the
// derived caches always travel together so the caches can never diverge from
// the blocks they were computed from.
func (s *PostgresStore) UpdatePageContent(ctx context.Context, tenantID, id string, patch ContentPatch) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pages
		SET title = $3, blocks = $4, theme = $5, body = $6, images = $7,
			publish_at = $8, unpublish_at = $9, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, patch.Title, patch.Blocks, patch.Theme,
		patch.Body, encodeImages(patch.Images), patch.PublishAt, patch.UnpublishAt,
	)
	if err != nil {
		return fmt.Errorf("update page content: %w", err)
	}
	return requireRow(res)
}

// UpdatePageTheme writes only the theme, conditioned on updated_at so that
// two pages racing to claim graph ownership cannot both win.
func (s *PostgresStore) UpdatePageTheme(ctx context.Context, tenantID, id string, theme json.RawMessage, expectUpdatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pages SET theme = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND updated_at = $4`,
		id, tenantID, theme, expectUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update page theme: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update page theme: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) UpdatePageStatus(ctx context.Context, tenantID, id, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pages SET status = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2`,
		id, tenantID, status,
	)
	if err != nil {
		return fmt.Errorf("update page status: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) DeletePage(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pages WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	return requireRow(res)
}

// CascadeNodeDelete persists a graph node deletion atomically: the owner's
// pruned theme plus the cleared iconRow blocks of every page that referenced
// the node, in one transaction.
func (s *PostgresStore) CascadeNodeDelete(ctx context.Context, tenantID, ownerID string, ownerTheme json.RawMessage, blockPatches map[string]BlocksPatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cascade tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE pages SET theme = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2`,
		ownerID, tenantID, ownerTheme); err != nil {
		return fmt.Errorf("cascade update theme: %w", err)
	}

	for pageID, patch := range blockPatches {
		if _, err := tx.ExecContext(ctx, `
			UPDATE pages SET blocks = $3, body = $4, images = $5, updated_at = NOW()
			WHERE id = $1 AND tenant_id = $2`,
			pageID, tenantID, patch.Blocks, patch.Body, encodeImages(patch.Images)); err != nil {
			return fmt.Errorf("cascade update blocks for %s: %w", pageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cascade tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountPublished(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pages WHERE tenant_id = $1 AND status = $2`, tenantID, StatusPublished).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count published: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) EnsureTenant(ctx context.Context, id, name string) (Tenant, error) {
	var t Tenant
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tenants (id, name, created_at) VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET name = tenants.name
		RETURNING id, name, created_at`,
		id, name).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err != nil {
		return Tenant{}, fmt.Errorf("ensure tenant: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) EnsureMembership(ctx context.Context, tenantID, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memberships (tenant_id, user_id, role, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, user_id) DO NOTHING`,
		tenantID, userID, role)
	if err != nil {
		return fmt.Errorf("ensure membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBillingAccount(ctx context.Context, tenantID string) (BillingAccount, error) {
	var a BillingAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, customer_id, tier, publish_limit, synced_at
		FROM billing_accounts WHERE tenant_id = $1`, tenantID).
		Scan(&a.TenantID, &a.CustomerID, &a.Tier, &a.PublishLimit, &a.SyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return BillingAccount{}, ErrNotFound
	}
	if err != nil {
		return BillingAccount{}, fmt.Errorf("get billing account: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) UpsertBillingAccount(ctx context.Context, a BillingAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO billing_accounts (tenant_id, customer_id, tier, publish_limit, synced_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id) DO UPDATE
		SET customer_id = EXCLUDED.customer_id, tier = EXCLUDED.tier,
			publish_limit = EXCLUDED.publish_limit, synced_at = EXCLUDED.synced_at`,
		a.TenantID, a.CustomerID, a.Tier, a.PublishLimit, a.SyncedAt)
	if err != nil {
		return fmt.Errorf("upsert billing account: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
