package market

import (
	"context"
	"errors"
	"sync"
	"testing"

	promptdomain "prompt-vault/backend/internal/domain/prompt"
	response "prompt-vault/backend/internal/infra/common"
	"prompt-vault/backend/internal/infra/store/storetest"
	"prompt-vault/backend/internal/repository"
)

const (
	authorID = "11111111-1111-4111-8111-111111111111"
	readerID = "22222222-2222-4222-8222-222222222222"
)

type fixture struct {
	svc     *Service
	prompts *repository.PromptRepository
	market  *repository.MarketRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	acc := storetest.Open(t)
	prompts := repository.NewPromptRepository(acc)
	market := repository.NewMarketRepository(acc)
	return fixture{svc: NewService(acc, market, prompts), prompts: prompts, market: market}
}

func (f fixture) createPrompt(t *testing.T, userID, name string) *promptdomain.Prompt {
	t.Helper()
	entity := &promptdomain.Prompt{
		UserID: userID,
		Name:   name,
		Body:   name + " body",
		Groups: promptdomain.EncodeGroups([]string{"写作"}),
	}
	if err := f.prompts.Create(context.Background(), entity); err != nil {
		t.Fatalf("create prompt: %v", err)
	}
	return entity
}

func TestPublishUpsertsOneListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source := f.createPrompt(t, authorID, "Writer")

	first, err := f.svc.Publish(ctx, authorID, source.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !first.Created || first.Message != messagePublished {
		t.Fatalf("unexpected first publish: %+v", first)
	}

	if err := f.prompts.Updates(ctx, source.ID, map[string]any{"name": "Writer v2"}); err != nil {
		t.Fatalf("rename prompt: %v", err)
	}
	second, err := f.svc.Publish(ctx, authorID, source.ID)
	if err != nil {
		t.Fatalf("republish: %v", err)
	}
	if second.Created || second.ID != first.ID || second.Message != messageUpdated {
		t.Fatalf("republish must update the same listing: %+v", second)
	}

	listing, err := f.market.FindByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("find listing: %v", err)
	}
	if listing.Name != "Writer v2" {
		t.Fatalf("listing content not refreshed: %q", listing.Name)
	}

	reloaded, _ := f.prompts.FindByID(ctx, source.ID)
	if !reloaded.IsPublished {
		t.Fatalf("source prompt should be marked published")
	}
}

func TestConcurrentPublishCreatesSingleListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source := f.createPrompt(t, authorID, "Race")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.svc.Publish(ctx, authorID, source.ID)
			if err != nil {
				t.Errorf("publish: %v", err)
				return
			}
			if result.Created {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("expected exactly one creation, got %d", created)
	}
	result, err := f.svc.List(ctx, "", ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("expected a single listing, got %d", result.Total)
	}
}

func TestPublishRejectsForeignOrMissingPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source := f.createPrompt(t, authorID, "Mine")

	_, err := f.svc.Publish(ctx, readerID, source.ID)
	if appErr, ok := response.AsAppError(err); !ok || appErr.Code != response.ErrForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.svc.Publish(ctx, authorID, "33333333-3333-4333-8333-333333333333"); !errors.Is(err, ErrPromptNotFound) {
		t.Fatalf("expected ErrPromptNotFound, got %v", err)
	}
}

func TestToggleFavorite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source := f.createPrompt(t, authorID, "Fav")
	published, err := f.svc.Publish(ctx, authorID, source.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	on, err := f.svc.ToggleFavorite(ctx, readerID, published.ID)
	if err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if !on.IsFavorited || on.FavoriteCount != 1 {
		t.Fatalf("unexpected toggle on: %+v", on)
	}
	status, err := f.svc.FavoriteStatus(ctx, readerID, published.ID)
	if err != nil || !status {
		t.Fatalf("status should be favorited: %v %v", status, err)
	}
	anon, err := f.svc.FavoriteStatus(ctx, "", published.ID)
	if err != nil || anon {
		t.Fatalf("anonymous viewer is never favorited")
	}

	list, err := f.svc.List(ctx, readerID, ListParams{})
	if err != nil || len(list.Items) != 1 || !list.Items[0].IsFavorited {
		t.Fatalf("list should carry favorite flag: %+v %v", list, err)
	}

	off, err := f.svc.ToggleFavorite(ctx, readerID, published.ID)
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if off.IsFavorited || off.FavoriteCount != 0 {
		t.Fatalf("unexpected toggle off: %+v", off)
	}

	if _, err := f.svc.ToggleFavorite(ctx, readerID, "33333333-3333-4333-8333-333333333333"); !errors.Is(err, ErrMarketPromptNotFound) {
		t.Fatalf("expected ErrMarketPromptNotFound, got %v", err)
	}
}

func TestConcurrentTogglesKeepCountConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source := f.createPrompt(t, authorID, "Busy")
	published, err := f.svc.Publish(ctx, authorID, source.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.ToggleFavorite(ctx, readerID, published.ID); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	wg.Wait()

	favorited, _ := f.market.IsFavorited(ctx, readerID, published.ID)
	count, err := f.market.FavoriteCount(ctx, published.ID)
	if err != nil {
		t.Fatalf("favorite count: %v", err)
	}
	want := 0
	if favorited {
		want = 1
	}
	if count != want {
		t.Fatalf("count %d does not match favorite state %v", count, favorited)
	}
}

func TestCloneAndSeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seeded, err := f.svc.Seed(ctx, []promptdomain.AgentItem{
		{Name: "Seed A", Prompt: "a", Group: []string{"工具"}},
		{Name: "Seed B", Prompt: "b", Description: "desc"},
	}, false)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if seeded.Inserted != 2 {
		t.Fatalf("expected 2 seeded listings, got %+v", seeded)
	}

	list, err := f.svc.List(ctx, "", ListParams{Search: "seed a"})
	if err != nil || len(list.Items) != 1 {
		t.Fatalf("search should find one listing: %+v %v", list, err)
	}

	clone, err := f.svc.Clone(ctx, readerID, list.Items[0].ID)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if clone.UserID != readerID || clone.Name != "Seed A" || clone.IsPublished || clone.LatestVersion != 0 {
		t.Fatalf("unexpected clone: %+v", clone)
	}
	versions, _ := f.prompts.ListVersions(ctx, clone.ID)
	if len(versions) != 0 {
		t.Fatalf("clone must not create versions")
	}

	source := f.createPrompt(t, authorID, "User listing")
	if _, err := f.svc.Publish(ctx, authorID, source.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	reset, err := f.svc.Seed(ctx, []promptdomain.AgentItem{{Name: "Fresh", Prompt: "f"}}, true)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if reset.Removed != 2 || reset.Inserted != 1 {
		t.Fatalf("unexpected reseed: %+v", reset)
	}
	all, _ := f.svc.List(ctx, "", ListParams{})
	if all.Total != 2 {
		t.Fatalf("user listing must survive reset, total=%d", all.Total)
	}

	groups, err := f.svc.Groups(ctx)
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if groups.GroupCounts["写作"] != 1 || groups.Total != 2 {
		t.Fatalf("unexpected groups: %+v", groups)
	}
}
