package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"guidepost/api/internal/block"
	"guidepost/api/internal/config"
	"guidepost/api/internal/navgraph"
	"guidepost/api/internal/store"
)

type fakeStore struct {
	insertPageFn           func(context.Context, store.Page) error
	getPageFn              func(context.Context, string, string) (store.Page, error)
	getPublishedBySlugFn   func(context.Context, string) (store.Page, error)
	listPagesFn            func(context.Context, string) ([]store.Page, error)
	slugExistsFn           func(context.Context, string, string) (bool, error)
	updatePageContentFn    func(context.Context, string, string, store.ContentPatch) error
	updatePageThemeFn      func(context.Context, string, string, json.RawMessage, time.Time) error
	updatePageStatusFn     func(context.Context, string, string, string) error
	deletePageFn           func(context.Context, string, string) error
	cascadeNodeDeleteFn    func(context.Context, string, string, json.RawMessage, map[string]store.BlocksPatch) error
	countPublishedFn       func(context.Context, string) (int, error)
	getBillingAccountFn    func(context.Context, string) (store.BillingAccount, error)
	upsertBillingAccountFn func(context.Context, store.BillingAccount) error
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) InsertPage(ctx context.Context, p store.Page) error {
	if f.insertPageFn != nil {
		return f.insertPageFn(ctx, p)
	}
	return nil
}
func (f *fakeStore) GetPage(ctx context.Context, tenantID, id string) (store.Page, error) {
	if f.getPageFn != nil {
		return f.getPageFn(ctx, tenantID, id)
	}
	return store.Page{}, store.ErrNotFound
}
func (f *fakeStore) GetPublishedBySlug(ctx context.Context, slug string) (store.Page, error) {
	if f.getPublishedBySlugFn != nil {
		return f.getPublishedBySlugFn(ctx, slug)
	}
	return store.Page{}, store.ErrNotFound
}
func (f *fakeStore) ListPages(ctx context.Context, tenantID string) ([]store.Page, error) {
	if f.listPagesFn != nil {
		return f.listPagesFn(ctx, tenantID)
	}
	return nil, nil
}
func (f *fakeStore) SlugExists(ctx context.Context, tenantID, slug string) (bool, error) {
	if f.slugExistsFn != nil {
		return f.slugExistsFn(ctx, tenantID, slug)
	}
	return false, nil
}
func (f *fakeStore) UpdatePageContent(ctx context.Context, tenantID, id string, patch store.ContentPatch) error {
	if f.updatePageContentFn != nil {
		return f.updatePageContentFn(ctx, tenantID, id, patch)
	}
	return nil
}
func (f *fakeStore) UpdatePageTheme(ctx context.Context, tenantID, id string, theme json.RawMessage, expectUpdatedAt time.Time) error {
	if f.updatePageThemeFn != nil {
		return f.updatePageThemeFn(ctx, tenantID, id, theme, expectUpdatedAt)
	}
	return nil
}
func (f *fakeStore) UpdatePageStatus(ctx context.Context, tenantID, id, status string) error {
	if f.updatePageStatusFn != nil {
		return f.updatePageStatusFn(ctx, tenantID, id, status)
	}
	return nil
}
func (f *fakeStore) DeletePage(ctx context.Context, tenantID, id string) error {
	if f.deletePageFn != nil {
		return f.deletePageFn(ctx, tenantID, id)
	}
	return nil
}
func (f *fakeStore) CascadeNodeDelete(ctx context.Context, tenantID, ownerID string, ownerTheme json.RawMessage, patches map[string]store.BlocksPatch) error {
	if f.cascadeNodeDeleteFn != nil {
		return f.cascadeNodeDeleteFn(ctx, tenantID, ownerID, ownerTheme, patches)
	}
	return nil
}
func (f *fakeStore) CountPublished(ctx context.Context, tenantID string) (int, error) {
	if f.countPublishedFn != nil {
		return f.countPublishedFn(ctx, tenantID)
	}
	return 0, nil
}
func (f *fakeStore) EnsureTenant(ctx context.Context, id, name string) (store.Tenant, error) {
	return store.Tenant{ID: id, Name: name}, nil
}
func (f *fakeStore) EnsureMembership(context.Context, string, string, string) error { return nil }
func (f *fakeStore) GetBillingAccount(ctx context.Context, tenantID string) (store.BillingAccount, error) {
	if f.getBillingAccountFn != nil {
		return f.getBillingAccountFn(ctx, tenantID)
	}
	return store.BillingAccount{}, store.ErrNotFound
}
func (f *fakeStore) UpsertBillingAccount(ctx context.Context, a store.BillingAccount) error {
	if f.upsertBillingAccountFn != nil {
		return f.upsertBillingAccountFn(ctx, a)
	}
	return nil
}

type fakeCache struct {
	invalidated []string
}

func (f *fakeCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (f *fakeCache) Set(context.Context, string, []byte) error         { return nil }
func (f *fakeCache) Invalidate(ctx context.Context, slug string) error {
	f.invalidated = append(f.invalidated, slug)
	return nil
}

func newTestService(fs *fakeStore, grace time.Duration) *Service {
	s := &Service{
		cfg: config.Config{
			TokenSecret:   "test-secret",
			PublicBaseURL: "http://localhost:8686",
			TrashGrace:    grace,
		},
		store:   fs,
		notices: make(map[string][]string),
	}
	s.trash = NewTrash(grace, s.finalizeTrash)
	return s
}

func testSession() Session {
	return Session{UserID: "editor-1", TenantID: "ten-1"}
}

func contentPage(id, slug, title string) store.Page {
	blocks := []block.Block{
		{ID: "blk-0", Type: block.TypeTitle, Text: title, TextAlign: "center"},
		{ID: "blk-1", Type: block.TypeParagraph, Text: "Welcome to " + title, TextAlign: "left"},
	}
	return store.Page{
		ID:       id,
		TenantID: "ten-1",
		Title:    title,
		Slug:     slug,
		Status:   store.StatusDraft,
		Body:     block.BodyText(blocks),
		Blocks:   block.Serialize(blocks),
		Theme:    json.RawMessage(`{}`),
	}
}

func TestCreatePagePicksUniqueSlug(t *testing.T) {
	var inserted store.Page
	fs := &fakeStore{
		slugExistsFn: func(_ context.Context, _, slug string) (bool, error) {
			return slug == "welcome", nil
		},
		insertPageFn: func(_ context.Context, p store.Page) error {
			inserted = p
			return nil
		},
		getPageFn: func(context.Context, string, string) (store.Page, error) {
			return inserted, nil
		},
	}
	svc := newTestService(fs, time.Minute)

	page, err := svc.CreatePage(context.Background(), testSession(), "Welcome")
	if err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	if inserted.Slug != "welcome-2" {
		t.Fatalf("slug = %q, want welcome-2", inserted.Slug)
	}
	if len(page.Blocks) == 0 || page.Blocks[0].Text != "Welcome" {
		t.Fatalf("expected seeded title block, got %+v", page.Blocks)
	}
}

func TestPublishBlockedByPlanLimit(t *testing.T) {
	page := contentPage("pg-1", "welcome", "Welcome")
	statusUpdates := 0
	fs := &fakeStore{
		getPageFn: func(context.Context, string, string) (store.Page, error) {
			return page, nil
		},
		listPagesFn: func(context.Context, string) ([]store.Page, error) {
			return []store.Page{page}, nil
		},
		getBillingAccountFn: func(context.Context, string) (store.BillingAccount, error) {
			return store.BillingAccount{TenantID: "ten-1", Tier: "starter", PublishLimit: 1}, nil
		},
		countPublishedFn: func(context.Context, string) (int, error) {
			return 1, nil
		},
		updatePageStatusFn: func(context.Context, string, string, string) error {
			statusUpdates++
			return nil
		},
	}
	svc := newTestService(fs, time.Minute)

	_, err := svc.PublishPage(context.Background(), testSession(), "pg-1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "PLAN_LIMIT" {
		t.Fatalf("expected PLAN_LIMIT error, got %v", err)
	}
	if domainErr.Status != 402 {
		t.Fatalf("status = %d, want 402", domainErr.Status)
	}
	if statusUpdates != 0 {
		t.Fatal("page status must not change when the plan limit blocks publishing")
	}
}

func TestPublishValidationErrorsBlock(t *testing.T) {
	page := store.Page{
		ID:       "pg-1",
		TenantID: "ten-1",
		Slug:     "empty",
		Status:   store.StatusDraft,
		Blocks:   json.RawMessage(`[{"type":"divider"}]`),
		Theme:    json.RawMessage(`{}`),
	}
	statusUpdates := 0
	fs := &fakeStore{
		getPageFn: func(context.Context, string, string) (store.Page, error) {
			return page, nil
		},
		listPagesFn: func(context.Context, string) ([]store.Page, error) {
			return []store.Page{page}, nil
		},
		updatePageStatusFn: func(context.Context, string, string, string) error {
			statusUpdates++
			return nil
		},
	}
	svc := newTestService(fs, time.Minute)

	issues, err := svc.PublishPage(context.Background(), testSession(), "pg-1")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %v", err)
	}
	if len(issues) == 0 {
		t.Fatal("expected issues for an empty untitled page")
	}
	if statusUpdates != 0 {
		t.Fatal("page status must not change on validation failure")
	}
}

func TestPublishSucceeds(t *testing.T) {
	page := contentPage("pg-1", "welcome", "Welcome")
	var gotStatus string
	fs := &fakeStore{
		getPageFn: func(context.Context, string, string) (store.Page, error) {
			return page, nil
		},
		listPagesFn: func(context.Context, string) ([]store.Page, error) {
			return []store.Page{page}, nil
		},
		updatePageStatusFn: func(_ context.Context, _, _, status string) error {
			gotStatus = status
			return nil
		},
	}
	svc := newTestService(fs, time.Minute)

	issues, err := svc.PublishPage(context.Background(), testSession(), "pg-1")
	if err != nil {
		t.Fatalf("PublishPage failed: %v", err)
	}
	for _, issue := range issues {
		if issue.Level == "error" {
			t.Fatalf("unexpected blocking issue: %+v", issue)
		}
	}
	if gotStatus != store.StatusPublished {
		t.Fatalf("status = %q, want published", gotStatus)
	}
}

func TestTrashUndoCancelsDeletion(t *testing.T) {
	page := contentPage("pg-1", "welcome", "Welcome")
	deletes := 0
	fs := &fakeStore{
		listPagesFn: func(context.Context, string) ([]store.Page, error) {
			return []store.Page{page}, nil
		},
		deletePageFn: func(context.Context, string, string) error {
			deletes++
			return nil
		},
	}
	svc := newTestService(fs, 50*time.Millisecond)
	ctx := context.Background()

	result, err := svc.TrashPages(ctx, testSession(), []string{"pg-1"}, false)
	if err != nil {
		t.Fatalf("TrashPages failed: %v", err)
	}
	if !svc.trash.Hidden("pg-1") {
		t.Fatal("page should be hidden inside the undo window")
	}

	restored, err := svc.UndoTrash(ctx, testSession(), result.BatchID)
	if err != nil {
		t.Fatalf("UndoTrash failed: %v", err)
	}
	if len(restored) != 1 || restored[0] != "pg-1" {
		t.Fatalf("restored = %v", restored)
	}
	if svc.trash.Hidden("pg-1") {
		t.Fatal("page should be visible after undo")
	}

	// Wait past the original grace window; the delete must never fire.
	time.Sleep(120 * time.Millisecond)
	if deletes != 0 {
		t.Fatalf("deletes = %d, want 0 after undo", deletes)
	}
}

func TestTrashFinalizesOncePerPage(t *testing.T) {
	pages := []store.Page{
		contentPage("pg-1", "welcome", "Welcome"),
		contentPage("pg-2", "spa", "Spa"),
	}
	deleted := make(chan string, 4)
	fs := &fakeStore{
		listPagesFn: func(context.Context, string) ([]store.Page, error) {
			return pages, nil
		},
		deletePageFn: func(_ context.Context, _, id string) error {
			deleted <- id
			return nil
		},
	}
	svc := newTestService(fs, 20*time.Millisecond)

	if _, err := svc.TrashPages(context.Background(), testSession(), []string{"pg-1", "pg-2"}, false); err != nil {
		t.Fatalf("TrashPages failed: %v", err)
	}

	got := map[string]int{}
	timeout := time.After(time.Second)
	for i := 0; i < 2; i++ {
		select {
		case id := <-deleted:
			got[id]++
		case <-timeout:
			t.Fatalf("finalization did not run, saw %v", got)
		}
	}
	time.Sleep(50 * time.Millisecond)
	if len(deleted) != 0 {
		t.Fatal("more deletes than trashed pages")
	}
	if got["pg-1"] != 1 || got["pg-2"] != 1 {
		t.Fatalf("delete counts = %v, want exactly one each", got)
	}
}

func TestTrashFinalizeFailureSurfacesNotice(t *testing.T) {
	page := contentPage("pg-1", "welcome", "Welcome")
	deleted := make(chan struct{}, 1)
	fs := &fakeStore{
		listPagesFn: func(context.Context, string) ([]store.Page, error) {
			return []store.Page{page}, nil
		},
		deletePageFn: func(context.Context, string, string) error {
			deleted <- struct{}{}
			return errors.New("storage down")
		},
	}
	svc := newTestService(fs, 10*time.Millisecond)

	if _, err := svc.TrashPages(context.Background(), testSession(), []string{"pg-1"}, false); err != nil {
		t.Fatalf("TrashPages failed: %v", err)
	}

	select {
	case <-deleted:
	case <-time.After(time.Second):
		t.Fatal("finalization never ran")
	}
	time.Sleep(20 * time.Millisecond)

	if svc.trash.Hidden("pg-1") {
		t.Fatal("page should be visible again after a failed delete")
	}
	list, err := svc.ListPages(context.Background(), testSession())
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}
	if len(list.Notices) == 0 {
		t.Fatal("expected a notice about the failed deletion")
	}
	if len(list.Pages) != 1 {
		t.Fatalf("pages = %d, want the failed page back in the list", len(list.Pages))
	}
}

func TestTrashWithSpokesDragsTargets(t *testing.T) {
	owner := contentPage("pg-1", "welcome", "Welcome")
	owner.Theme = navgraph.EncodeTheme(navgraph.Theme{Navigation: navgraph.Graph{
		Enabled: true,
		Nodes: []navgraph.Node{
			{ID: navgraph.HubID, Title: "Welcome", TargetSlug: "welcome", X: 50, Y: 15},
			{ID: "nav-1", Title: "Spa", TargetSlug: "spa", X: 30, Y: 60},
		},
	}})
	spoke := contentPage("pg-2", "spa", "Spa")
	other := contentPage("pg-3", "gym", "Gym")

	fs := &fakeStore{
		listPagesFn: func(context.Context, string) ([]store.Page, error) {
			return []store.Page{owner, spoke, other}, nil
		},
	}
	svc := newTestService(fs, time.Minute)

	result, err := svc.TrashPages(context.Background(), testSession(), []string{"pg-1"}, true)
	if err != nil {
		t.Fatalf("TrashPages failed: %v", err)
	}
	if len(result.PageIDs) != 2 {
		t.Fatalf("trashed %v, want owner and spoke", result.PageIDs)
	}
	if !svc.trash.Hidden("pg-1") || !svc.trash.Hidden("pg-2") {
		t.Fatal("owner and spoke should both be hidden")
	}
	if svc.trash.Hidden("pg-3") {
		t.Fatal("unrelated page must not be trashed")
	}
}

func TestSavePageRecomputesCachesAndInvalidates(t *testing.T) {
	page := contentPage("pg-1", "welcome", "Welcome")
	var gotPatch store.ContentPatch
	fs := &fakeStore{
		getPageFn: func(context.Context, string, string) (store.Page, error) {
			return page, nil
		},
		listPagesFn: func(context.Context, string) ([]store.Page, error) {
			return []store.Page{page}, nil
		},
		updatePageContentFn: func(_ context.Context, _, _ string, patch store.ContentPatch) error {
			gotPatch = patch
			return nil
		},
	}
	cache := &fakeCache{}
	svc := newTestService(fs, time.Minute)
	svc.cache = cache

	_, err := svc.SavePage(context.Background(), testSession(), "pg-1", SavePageInput{
		Title: "Welcome",
		Blocks: json.RawMessage(`[
			{"type":"paragraph","text":"Check-in is at 3pm"},
			{"type":"image","url":"https://img.example.com/lobby.jpg"}
		]`),
		Theme: json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("SavePage failed: %v", err)
	}

	if !strings.Contains(gotPatch.Body, "Check-in is at 3pm") {
		t.Fatalf("body cache not recomputed: %q", gotPatch.Body)
	}
	if len(gotPatch.Images) != 1 || gotPatch.Images[0] != "https://img.example.com/lobby.jpg" {
		t.Fatalf("image cache = %v", gotPatch.Images)
	}

	found := false
	for _, slug := range cache.invalidated {
		if slug == "welcome" {
			found = true
		}
	}
	if !found {
		t.Fatalf("cache not invalidated for slug, got %v", cache.invalidated)
	}
}

func TestDeleteGraphNodeCascades(t *testing.T) {
	iconRow := json.RawMessage(`[
		{"type":"title","text":"Welcome"},
		{"type":"iconRow","iconItems":[{"id":"i-0","label":"Spa","nodeId":"nav-1","link":"page:spa"}]}
	]`)
	owner := contentPage("pg-1", "welcome", "Welcome")
	owner.Blocks = iconRow
	owner.Theme = navgraph.EncodeTheme(navgraph.Theme{Navigation: navgraph.Graph{
		Enabled: true,
		Nodes: []navgraph.Node{
			{ID: navgraph.HubID, Title: "Welcome", TargetSlug: "welcome", X: 50, Y: 15},
			{ID: "nav-1", Title: "Spa", TargetSlug: "spa", X: 30, Y: 60},
		},
		Edges: []navgraph.Edge{{ID: "edge-nav-1", From: navgraph.HubID, To: "nav-1"}},
	}})
	sibling := contentPage("pg-2", "spa", "Spa")
	sibling.Blocks = json.RawMessage(`[
		{"type":"iconRow","iconItems":[{"id":"i-0","label":"Spa","nodeId":"nav-1"}]}
	]`)

	var gotTheme json.RawMessage
	var gotPatches map[string]store.BlocksPatch
	fs := &fakeStore{
		getPageFn: func(_ context.Context, _, id string) (store.Page, error) {
			if id == "pg-1" {
				return owner, nil
			}
			return sibling, nil
		},
		listPagesFn: func(context.Context, string) ([]store.Page, error) {
			return []store.Page{owner, sibling}, nil
		},
		cascadeNodeDeleteFn: func(_ context.Context, _, _ string, theme json.RawMessage, patches map[string]store.BlocksPatch) error {
			gotTheme = theme
			gotPatches = patches
			return nil
		},
	}
	svc := newTestService(fs, time.Minute)

	_, err := svc.DeleteGraphNode(context.Background(), testSession(), "pg-1", "nav-1")
	if err != nil {
		t.Fatalf("DeleteGraphNode failed: %v", err)
	}

	theme := navgraph.DecodeTheme(gotTheme)
	if _, ok := theme.Navigation.FindNode("nav-1"); ok {
		t.Fatal("node still present in persisted graph")
	}
	if len(theme.Navigation.Edges) != 0 {
		t.Fatalf("edges = %v, want none", theme.Navigation.Edges)
	}

	if len(gotPatches) != 2 {
		t.Fatalf("patches for %d pages, want 2", len(gotPatches))
	}
	for pageID, patch := range gotPatches {
		blocks := block.Normalize(patch.Blocks, "")
		for _, b := range blocks {
			for _, item := range b.IconItems {
				if item.NodeID == "nav-1" {
					t.Fatalf("page %s still references deleted node", pageID)
				}
				if item.NodeID == "" && item.Link != "" && pageID == "pg-1" && item.ID == "i-0" {
					t.Fatalf("page %s kept the stale link %q", pageID, item.Link)
				}
			}
		}
	}
}

func TestDeleteGraphNodeRefusesHub(t *testing.T) {
	svc := newTestService(&fakeStore{}, time.Minute)
	_, err := svc.DeleteGraphNode(context.Background(), testSession(), "pg-1", navgraph.HubID)
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 422 {
		t.Fatalf("expected validation error for hub deletion, got %v", err)
	}
}
