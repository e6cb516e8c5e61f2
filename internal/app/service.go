// Package app wires the domain packages into the editor-facing service and
// its HTTP surface.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"guidepost/api/internal/auth"
	"guidepost/api/internal/billing"
	"guidepost/api/internal/block"
	"guidepost/api/internal/config"
	"guidepost/api/internal/logger"
	"guidepost/api/internal/navgraph"
	"guidepost/api/internal/publish"
	"guidepost/api/internal/revision"
	"guidepost/api/internal/search"
	"guidepost/api/internal/store"
	"guidepost/api/internal/util"
)

// Session is the resolved identity of an authenticated editor.
type Session struct {
	UserID   string
	TenantID string
}

type dataStore interface {
	Ping(ctx context.Context) error
	InsertPage(ctx context.Context, p store.Page) error
	GetPage(ctx context.Context, tenantID, id string) (store.Page, error)
	GetPublishedBySlug(ctx context.Context, slug string) (store.Page, error)
	ListPages(ctx context.Context, tenantID string) ([]store.Page, error)
	SlugExists(ctx context.Context, tenantID, slug string) (bool, error)
	UpdatePageContent(ctx context.Context, tenantID, id string, patch store.ContentPatch) error
	UpdatePageTheme(ctx context.Context, tenantID, id string, theme json.RawMessage, expectUpdatedAt time.Time) error
	UpdatePageStatus(ctx context.Context, tenantID, id, status string) error
	DeletePage(ctx context.Context, tenantID, id string) error
	CascadeNodeDelete(ctx context.Context, tenantID, ownerID string, ownerTheme json.RawMessage, blockPatches map[string]store.BlocksPatch) error
	CountPublished(ctx context.Context, tenantID string) (int, error)
	EnsureTenant(ctx context.Context, id, name string) (store.Tenant, error)
	EnsureMembership(ctx context.Context, tenantID, userID, role string) error
	GetBillingAccount(ctx context.Context, tenantID string) (store.BillingAccount, error)
	UpsertBillingAccount(ctx context.Context, a store.BillingAccount) error
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexPage(rec search.PageRecord)
	DeletePage(id string)
}

type pageCache interface {
	Get(ctx context.Context, slug string) ([]byte, bool, error)
	Set(ctx context.Context, slug string, payload []byte) error
	Invalidate(ctx context.Context, slug string) error
}

type revisionStore interface {
	EnsureRepo(pageID string, initial revision.Snapshot, author string) error
	Commit(pageID string, snap revision.Snapshot, author, message string) (revision.Info, error)
	History(pageID string, limit int) ([]revision.Info, error)
	GetByHash(pageID, hash string) (revision.Snapshot, error)
	Remove(pageID string) error
}

type billingClient interface {
	StartCheckout(ctx context.Context, customerID, tier, tenantID string) (string, error)
	PortalURL(ctx context.Context, customerID string) (string, error)
	SyncPlan(ctx context.Context, customerID string) (billing.Plan, error)
}

type mediaUploader interface {
	Upload(ctx context.Context, tenantID, filename string, r io.Reader, size int64, contentType string) (string, error)
}

// freePublishLimit applies to tenants without a synced billing account.
const freePublishLimit = 3

type Service struct {
	cfg       config.Config
	store     dataStore
	search    searchIndex
	cache     pageCache
	revisions revisionStore
	billing   billingClient
	media     mediaUploader
	trash     *Trash

	noticeMu sync.Mutex
	notices  map[string][]string
}

// Options carries the optional infrastructure. Any nil field degrades the
// matching feature instead of failing startup.
type Options struct {
	Search    searchIndex
	Cache     pageCache
	Revisions revisionStore
	Billing   billingClient
	Media     mediaUploader
}

func New(cfg config.Config, dataStore *store.PostgresStore, opts Options) *Service {
	s := &Service{
		cfg:       cfg,
		store:     dataStore,
		search:    opts.Search,
		cache:     opts.Cache,
		revisions: opts.Revisions,
		billing:   opts.Billing,
		media:     opts.Media,
		notices:   make(map[string][]string),
	}
	s.trash = NewTrash(cfg.TrashGrace, s.finalizeTrash)
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap seeds a demo tenant with a starter page so a fresh dev
// environment has something to open. Production tenants arrive via tokens.
func (s *Service) Bootstrap(ctx context.Context) error {
	if !s.cfg.DevTokens {
		return nil
	}
	tenant, err := s.store.EnsureTenant(ctx, "demo", "Demo Property")
	if err != nil {
		return err
	}
	if err := s.store.EnsureMembership(ctx, tenant.ID, "dev", "editor"); err != nil {
		return err
	}

	pages, err := s.store.ListPages(ctx, tenant.ID)
	if err != nil {
		return err
	}
	if len(pages) > 0 {
		return nil
	}

	_, err = s.CreatePage(ctx, Session{UserID: "dev", TenantID: tenant.ID}, "Welcome")
	return err
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: claims.Sub, TenantID: claims.Tenant}, nil
}

// MintDevToken issues a token for local development.
func (s *Service) MintDevToken(userID, tenantID string) (string, error) {
	if !s.cfg.DevTokens {
		return "", domainError(http.StatusForbidden, "FORBIDDEN", "Dev tokens are disabled", nil)
	}
	return auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:    userID,
		Tenant: tenantID,
		JTI:    util.NewID("jti"),
		Exp:    time.Now().Add(24 * time.Hour).Unix(),
	})
}

// EditorPage is the full editor view of one page, with blocks normalized and
// the navigation graph resolved through its owner.
type EditorPage struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Slug          string         `json:"slug"`
	Status        string         `json:"status"`
	Blocks        []block.Block  `json:"blocks"`
	Theme         navgraph.Theme `json:"theme"`
	Graph         navgraph.Graph `json:"graph"`
	GraphOwnerID  string         `json:"graphOwnerId"`
	GraphFollower bool           `json:"graphFollower"`
	Body          string         `json:"body"`
	Images        []string       `json:"images"`
	PublishAt     *time.Time     `json:"publishAt,omitempty"`
	UnpublishAt   *time.Time     `json:"unpublishAt,omitempty"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// PageSummary is one row of the page list.
type PageSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Service) CreatePage(ctx context.Context, session Session, title string) (EditorPage, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return EditorPage{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}

	slug, err := s.uniqueSlug(ctx, session.TenantID, title)
	if err != nil {
		return EditorPage{}, err
	}

	blocks := []block.Block{{ID: "blk-0", Type: block.TypeTitle, Text: title, TextAlign: "center"}}
	theme := navgraph.Theme{}
	now := time.Now()
	page := store.Page{
		ID:        util.NewID("pg"),
		TenantID:  session.TenantID,
		Title:     title,
		Slug:      slug,
		Status:    store.StatusDraft,
		Body:      block.BodyText(blocks),
		Images:    block.ImageURLs(blocks),
		Blocks:    block.Serialize(blocks),
		Theme:     navgraph.EncodeTheme(theme),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertPage(ctx, page); err != nil {
		return EditorPage{}, err
	}

	if s.revisions != nil {
		if err := s.revisions.EnsureRepo(page.ID, revision.Snapshot{
			Title:  page.Title,
			Blocks: page.Blocks,
			Theme:  page.Theme,
		}, session.UserID); err != nil {
			logger.Log.Warn("revision repo init failed", zap.String("page_id", page.ID), zap.Error(err))
		}
	}
	s.indexPage(page)

	return s.editorView(ctx, session, page)
}

func (s *Service) GetEditorPage(ctx context.Context, session Session, id string) (EditorPage, error) {
	if s.trash.Hidden(id) {
		return EditorPage{}, domainError(http.StatusNotFound, "NOT_FOUND", "Page not found", nil)
	}
	page, err := s.store.GetPage(ctx, session.TenantID, id)
	if err != nil {
		return EditorPage{}, err
	}
	return s.editorView(ctx, session, page)
}

func (s *Service) editorView(ctx context.Context, session Session, page store.Page) (EditorPage, error) {
	blocks := block.Normalize(page.Blocks, page.Body)
	theme := navgraph.DecodeTheme(page.Theme)

	ownerID, graph, follower, err := s.resolveGraph(ctx, session.TenantID, page, theme)
	if err != nil {
		return EditorPage{}, err
	}

	return EditorPage{
		ID:            page.ID,
		Title:         page.Title,
		Slug:          page.Slug,
		Status:        page.Status,
		Blocks:        blocks,
		Theme:         theme,
		Graph:         graph,
		GraphOwnerID:  ownerID,
		GraphFollower: follower,
		Body:          page.Body,
		Images:        nonNilStrings(page.Images),
		PublishAt:     page.PublishAt,
		UnpublishAt:   page.UnpublishAt,
		UpdatedAt:     page.UpdatedAt,
	}, nil
}

func (s *Service) resolveGraph(ctx context.Context, tenantID string, page store.Page, theme navgraph.Theme) (string, navgraph.Graph, bool, error) {
	siblings, err := s.siblingGraphs(ctx, tenantID)
	if err != nil {
		return "", navgraph.Graph{}, false, err
	}
	ownerID, graph, follower := navgraph.ResolveOwner(page.ID, page.Slug, theme.Navigation, siblings)
	return ownerID, graph, follower, nil
}

func (s *Service) siblingGraphs(ctx context.Context, tenantID string) ([]navgraph.SiblingGraph, error) {
	pages, err := s.store.ListPages(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	siblings := make([]navgraph.SiblingGraph, 0, len(pages))
	for _, p := range pages {
		if s.trash.Hidden(p.ID) {
			continue
		}
		siblings = append(siblings, navgraph.SiblingGraph{
			PageID: p.ID,
			Slug:   p.Slug,
			Graph:  navgraph.DecodeTheme(p.Theme).Navigation,
		})
	}
	return siblings, nil
}

// SavePageInput is the full editor save payload. Blocks and theme arrive as
// raw JSON and are normalized server-side; the client's shape is never
// trusted.
type SavePageInput struct {
	Title       string          `json:"title"`
	Blocks      json.RawMessage `json:"blocks"`
	Theme       json.RawMessage `json:"theme"`
	NodeEdits   []navgraph.Node `json:"nodeEdits,omitempty"`
	PublishAt   *time.Time      `json:"publishAt,omitempty"`
	UnpublishAt *time.Time      `json:"unpublishAt,omitempty"`
}

func (s *Service) SavePage(ctx context.Context, session Session, id string, in SavePageInput) (EditorPage, error) {
	if s.trash.Hidden(id) {
		return EditorPage{}, domainError(http.StatusNotFound, "NOT_FOUND", "Page not found", nil)
	}
	page, err := s.store.GetPage(ctx, session.TenantID, id)
	if err != nil {
		return EditorPage{}, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = page.Title
	}

	blocks := block.Normalize(in.Blocks, page.Body)
	theme := navgraph.DecodeTheme(in.Theme)
	if len(in.NodeEdits) > 0 {
		theme.Navigation = navgraph.ApplyNodeEdits(theme.Navigation, in.NodeEdits)
	}
	theme.Navigation = navgraph.Sync(theme.Navigation, blocks, title, page.Slug)

	patch := store.ContentPatch{
		Title:       title,
		Blocks:      block.Serialize(blocks),
		Theme:       navgraph.EncodeTheme(theme),
		Body:        block.BodyText(blocks),
		Images:      block.ImageURLs(blocks),
		PublishAt:   in.PublishAt,
		UnpublishAt: in.UnpublishAt,
	}
	if err := s.store.UpdatePageContent(ctx, session.TenantID, id, patch); err != nil {
		return EditorPage{}, err
	}

	if s.revisions != nil {
		if _, err := s.revisions.Commit(id, revision.Snapshot{
			Title:  patch.Title,
			Blocks: patch.Blocks,
			Theme:  patch.Theme,
		}, session.UserID, "Edit page"); err != nil {
			logger.Log.Warn("revision commit failed", zap.String("page_id", id), zap.Error(err))
		}
	}

	page, err = s.store.GetPage(ctx, session.TenantID, id)
	if err != nil {
		return EditorPage{}, err
	}
	s.indexPage(page)
	s.invalidate(ctx, page.Slug)

	return s.editorView(ctx, session, page)
}

// GraphUpdateInput carries manual graph edits: the ownership toggle and node
// position/title/icon changes. Edges are never edited directly.
type GraphUpdateInput struct {
	Enabled *bool           `json:"enabled,omitempty"`
	Nodes   []navgraph.Node `json:"nodes,omitempty"`
}

// UpdateGraph applies manual graph edits and re-syncs. The write is
// conditioned on the page's updated_at so two pages racing to claim the same
// graph cannot both win; the loser gets a conflict and re-reads.
func (s *Service) UpdateGraph(ctx context.Context, session Session, id string, in GraphUpdateInput) (EditorPage, error) {
	page, err := s.store.GetPage(ctx, session.TenantID, id)
	if err != nil {
		return EditorPage{}, err
	}

	theme := navgraph.DecodeTheme(page.Theme)
	if in.Enabled != nil {
		theme.Navigation.Enabled = *in.Enabled
	}
	if len(in.Nodes) > 0 {
		theme.Navigation = navgraph.ApplyNodeEdits(theme.Navigation, in.Nodes)
	}
	blocks := block.Normalize(page.Blocks, page.Body)
	theme.Navigation = navgraph.Sync(theme.Navigation, blocks, page.Title, page.Slug)

	err = s.store.UpdatePageTheme(ctx, session.TenantID, id, navgraph.EncodeTheme(theme), page.UpdatedAt)
	if errors.Is(err, store.ErrConflict) {
		return EditorPage{}, domainError(http.StatusConflict, "CONFLICT", "Page changed concurrently, reload and retry", nil)
	}
	if err != nil {
		return EditorPage{}, err
	}

	page, err = s.store.GetPage(ctx, session.TenantID, id)
	if err != nil {
		return EditorPage{}, err
	}
	s.invalidate(ctx, page.Slug)
	return s.editorView(ctx, session, page)
}

// DeleteGraphNode removes a spoke from the graph owned by page id and clears
// every iconRow reference to it across the tenant's pages, atomically.
func (s *Service) DeleteGraphNode(ctx context.Context, session Session, id, nodeID string) (EditorPage, error) {
	if nodeID == navgraph.HubID {
		return EditorPage{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "the entry node cannot be deleted", nil)
	}

	owner, err := s.store.GetPage(ctx, session.TenantID, id)
	if err != nil {
		return EditorPage{}, err
	}
	theme := navgraph.DecodeTheme(owner.Theme)
	if _, ok := theme.Navigation.FindNode(nodeID); !ok {
		return EditorPage{}, domainError(http.StatusNotFound, "NOT_FOUND", "Graph node not found", nil)
	}

	pages, err := s.store.ListPages(ctx, session.TenantID)
	if err != nil {
		return EditorPage{}, err
	}

	patches := make(map[string]store.BlocksPatch)
	ownerBlocks := block.Normalize(owner.Blocks, owner.Body)
	for _, p := range pages {
		blocks := ownerBlocks
		if p.ID != owner.ID {
			blocks = block.Normalize(p.Blocks, p.Body)
		}
		if _, referenced := navgraph.ReferencedNodeIDs(blocks)[nodeID]; !referenced {
			continue
		}
		cleared := navgraph.ClearNodeRefs(blocks, nodeID)
		patches[p.ID] = store.BlocksPatch{
			Blocks: block.Serialize(cleared),
			Body:   block.BodyText(cleared),
			Images: block.ImageURLs(cleared),
		}
		if p.ID == owner.ID {
			ownerBlocks = cleared
		}
	}

	graph, _, ok := navgraph.DeleteNode(theme.Navigation, ownerBlocks, nodeID)
	if !ok {
		return EditorPage{}, domainError(http.StatusNotFound, "NOT_FOUND", "Graph node not found", nil)
	}
	theme.Navigation = graph

	if err := s.store.CascadeNodeDelete(ctx, session.TenantID, owner.ID, navgraph.EncodeTheme(theme), patches); err != nil {
		return EditorPage{}, err
	}

	for _, p := range pages {
		if _, touched := patches[p.ID]; touched || p.ID == owner.ID {
			s.invalidate(ctx, p.Slug)
		}
	}

	page, err := s.store.GetPage(ctx, session.TenantID, id)
	if err != nil {
		return EditorPage{}, err
	}
	s.indexPage(page)
	return s.editorView(ctx, session, page)
}

// PublishPage validates the page and flips it to published. Validation errors
// block the transition and are returned as the issue list; warnings are
// returned but do not block.
func (s *Service) PublishPage(ctx context.Context, session Session, id string) ([]publish.Issue, error) {
	if s.trash.Hidden(id) {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Page not found", nil)
	}
	page, err := s.store.GetPage(ctx, session.TenantID, id)
	if err != nil {
		return nil, err
	}

	pages, err := s.store.ListPages(ctx, session.TenantID)
	if err != nil {
		return nil, err
	}
	siblingStatus := make(map[string]string, len(pages))
	for _, p := range pages {
		if s.trash.Hidden(p.ID) {
			continue
		}
		siblingStatus[p.Slug] = p.Status
	}
	// The page being published counts as published for its own link checks.
	siblingStatus[page.Slug] = store.StatusPublished

	theme := navgraph.DecodeTheme(page.Theme)
	_, graph, _, err := s.resolveGraph(ctx, session.TenantID, page, theme)
	if err != nil {
		return nil, err
	}

	issues := publish.Validate(publish.Input{
		Title:       page.Title,
		Blocks:      block.Normalize(page.Blocks, page.Body),
		PublishAt:   page.PublishAt,
		UnpublishAt: page.UnpublishAt,
	}, graph, siblingStatus)

	if publish.HasErrors(issues) {
		return issues, domainError(http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Page cannot be published", issues)
	}

	if page.Status != store.StatusPublished {
		limit, err := s.publishLimit(ctx, session.TenantID)
		if err != nil {
			return issues, err
		}
		count, err := s.store.CountPublished(ctx, session.TenantID)
		if err != nil {
			return issues, err
		}
		if count >= limit {
			return issues, domainError(http.StatusPaymentRequired, "PLAN_LIMIT",
				fmt.Sprintf("Plan allows %d published pages", limit), nil)
		}
	}

	if err := s.store.UpdatePageStatus(ctx, session.TenantID, id, store.StatusPublished); err != nil {
		return issues, err
	}

	page.Status = store.StatusPublished
	s.indexPage(page)
	s.invalidate(ctx, page.Slug)
	return issues, nil
}

func (s *Service) UnpublishPage(ctx context.Context, session Session, id string) error {
	page, err := s.store.GetPage(ctx, session.TenantID, id)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePageStatus(ctx, session.TenantID, id, store.StatusDraft); err != nil {
		return err
	}
	page.Status = store.StatusDraft
	s.indexPage(page)
	s.invalidate(ctx, page.Slug)
	return nil
}

func (s *Service) publishLimit(ctx context.Context, tenantID string) (int, error) {
	account, err := s.store.GetBillingAccount(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return freePublishLimit, nil
	}
	if err != nil {
		return 0, err
	}
	if account.PublishLimit <= 0 {
		return freePublishLimit, nil
	}
	return account.PublishLimit, nil
}

// PageList is the editor's page overview plus any pending notices (trash undo
// hints, failed finalizations).
type PageList struct {
	Pages   []PageSummary `json:"pages"`
	Notices []string      `json:"notices"`
}

func (s *Service) ListPages(ctx context.Context, session Session) (PageList, error) {
	pages, err := s.store.ListPages(ctx, session.TenantID)
	if err != nil {
		return PageList{}, err
	}

	list := PageList{Pages: []PageSummary{}, Notices: s.drainNotices(session.TenantID)}
	for _, p := range pages {
		if s.trash.Hidden(p.ID) {
			continue
		}
		list.Pages = append(list.Pages, PageSummary{
			ID:        p.ID,
			Title:     p.Title,
			Slug:      p.Slug,
			Status:    p.Status,
			UpdatedAt: p.UpdatedAt,
		})
	}
	return list, nil
}

// PublicPage renders the published payload for a slug, read through the page
// cache when one is configured.
func (s *Service) PublicPage(ctx context.Context, slug string) ([]byte, error) {
	if s.cache != nil {
		if payload, hit, err := s.cache.Get(ctx, slug); err == nil && hit {
			return payload, nil
		}
	}

	page, err := s.store.GetPublishedBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if s.trash.Hidden(page.ID) {
		return nil, store.ErrNotFound
	}

	blocks := block.Normalize(page.Blocks, page.Body)
	theme := navgraph.DecodeTheme(page.Theme)
	_, graph, _, err := s.resolveGraph(ctx, page.TenantID, page, theme)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"title":  page.Title,
		"slug":   page.Slug,
		"blocks": blocks,
		"theme":  theme,
		"graph":  graph,
		"images": nonNilStrings(page.Images),
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, slug, payload); err != nil {
			logger.Log.Warn("page cache set failed", zap.String("slug", slug), zap.Error(err))
		}
	}
	return payload, nil
}

func (s *Service) Revisions(ctx context.Context, session Session, id string, limit int) ([]revision.Info, error) {
	if s.revisions == nil {
		return nil, domainError(http.StatusServiceUnavailable, "REVISIONS_UNAVAILABLE", "Revision history not configured", nil)
	}
	if _, err := s.store.GetPage(ctx, session.TenantID, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	return s.revisions.History(id, limit)
}

// RestoreRevision replaces the page's editable content with an earlier
// snapshot. The restore itself is committed so history never rewinds.
func (s *Service) RestoreRevision(ctx context.Context, session Session, id, hash string) (EditorPage, error) {
	if s.revisions == nil {
		return EditorPage{}, domainError(http.StatusServiceUnavailable, "REVISIONS_UNAVAILABLE", "Revision history not configured", nil)
	}
	if _, err := s.store.GetPage(ctx, session.TenantID, id); err != nil {
		return EditorPage{}, err
	}

	snap, err := s.revisions.GetByHash(id, hash)
	if err != nil {
		return EditorPage{}, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}

	page, err := s.SavePage(ctx, session, id, SavePageInput{
		Title:  snap.Title,
		Blocks: snap.Blocks,
		Theme:  snap.Theme,
	})
	if err != nil {
		return EditorPage{}, err
	}

	if _, err := s.revisions.Commit(id, snap, session.UserID, "Restore revision "+hash); err != nil {
		logger.Log.Warn("restore commit failed", zap.String("page_id", id), zap.Error(err))
	}
	return page, nil
}

func (s *Service) Search(ctx context.Context, session Session, text string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}}, nil
	}
	return s.search.Search(search.Query{
		TenantID: session.TenantID,
		Text:     text,
		Limit:    limit,
		Offset:   offset,
	}), nil
}

func (s *Service) UploadMedia(ctx context.Context, session Session, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if s.media == nil {
		return "", domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Media storage not configured", nil)
	}
	url, err := s.media.Upload(ctx, session.TenantID, filename, r, size, contentType)
	if err != nil {
		return "", domainError(http.StatusUnprocessableEntity, "UPLOAD_FAILED", err.Error(), nil)
	}
	return url, nil
}

// BillingStatus reports the cached plan for the tenant.
func (s *Service) BillingStatus(ctx context.Context, session Session) (store.BillingAccount, error) {
	account, err := s.store.GetBillingAccount(ctx, session.TenantID)
	if errors.Is(err, store.ErrNotFound) {
		return store.BillingAccount{
			TenantID:     session.TenantID,
			Tier:         "free",
			PublishLimit: freePublishLimit,
		}, nil
	}
	return account, err
}

func (s *Service) BillingCheckout(ctx context.Context, session Session, tier string) (string, error) {
	if s.billing == nil {
		return "", domainError(http.StatusServiceUnavailable, "BILLING_UNAVAILABLE", "Billing not configured", nil)
	}
	account, err := s.BillingStatus(ctx, session)
	if err != nil {
		return "", err
	}
	customerID := account.CustomerID
	if customerID == "" {
		customerID = "cus-" + session.TenantID
	}
	return s.billing.StartCheckout(ctx, customerID, tier, session.TenantID)
}

func (s *Service) BillingPortal(ctx context.Context, session Session) (string, error) {
	if s.billing == nil {
		return "", domainError(http.StatusServiceUnavailable, "BILLING_UNAVAILABLE", "Billing not configured", nil)
	}
	account, err := s.store.GetBillingAccount(ctx, session.TenantID)
	if err != nil {
		return "", err
	}
	return s.billing.PortalURL(ctx, account.CustomerID)
}

// BillingSync polls the provider and persists its answer locally.
func (s *Service) BillingSync(ctx context.Context, session Session) (store.BillingAccount, error) {
	if s.billing == nil {
		return store.BillingAccount{}, domainError(http.StatusServiceUnavailable, "BILLING_UNAVAILABLE", "Billing not configured", nil)
	}
	account, err := s.BillingStatus(ctx, session)
	if err != nil {
		return store.BillingAccount{}, err
	}
	customerID := account.CustomerID
	if customerID == "" {
		customerID = "cus-" + session.TenantID
	}

	plan, err := s.billing.SyncPlan(ctx, customerID)
	if err != nil {
		return store.BillingAccount{}, domainError(http.StatusBadGateway, "BILLING_SYNC_FAILED", "Billing provider unreachable", nil)
	}

	updated := store.BillingAccount{
		TenantID:     session.TenantID,
		CustomerID:   customerID,
		Tier:         plan.Tier,
		PublishLimit: plan.PublishLimit,
		SyncedAt:     time.Now(),
	}
	if err := s.store.UpsertBillingAccount(ctx, updated); err != nil {
		return store.BillingAccount{}, err
	}
	return updated, nil
}

func (s *Service) indexPage(page store.Page) {
	if s.search == nil {
		return
	}
	s.search.IndexPage(search.PageRecord{
		ID:       page.ID,
		TenantID: page.TenantID,
		Slug:     page.Slug,
		Title:    page.Title,
		Body:     page.Body,
		Status:   page.Status,
	})
}

func (s *Service) invalidate(ctx context.Context, slug string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, slug); err != nil {
		logger.Log.Warn("page cache invalidate failed", zap.String("slug", slug), zap.Error(err))
	}
}

func (s *Service) addNotice(tenantID, notice string) {
	s.noticeMu.Lock()
	defer s.noticeMu.Unlock()
	s.notices[tenantID] = append(s.notices[tenantID], notice)
}

func (s *Service) drainNotices(tenantID string) []string {
	s.noticeMu.Lock()
	defer s.noticeMu.Unlock()
	notices := s.notices[tenantID]
	delete(s.notices, tenantID)
	if notices == nil {
		notices = []string{}
	}
	return notices
}

func (s *Service) uniqueSlug(ctx context.Context, tenantID, title string) (string, error) {
	base := util.Slugify(title)
	slug := base
	for i := 2; ; i++ {
		exists, err := s.store.SlugExists(ctx, tenantID, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
