package feed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	promptdomain "prompt-vault/backend/internal/domain/prompt"
	"prompt-vault/backend/internal/infra/feedcache"
	"prompt-vault/backend/internal/infra/store/storetest"
	"prompt-vault/backend/internal/repository"
)

const userID = "11111111-1111-4111-8111-111111111111"

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}

func (brokenCache) Invalidate(context.Context, string) error {
	return errors.New("cache down")
}

func seed(t *testing.T, repo *repository.PromptRepository, name string) {
	t.Helper()
	entity := &promptdomain.Prompt{
		UserID: userID,
		Name:   name,
		Body:   name + " body",
		Groups: promptdomain.EncodeGroups([]string{"写作"}),
	}
	if err := repo.Create(context.Background(), entity); err != nil {
		t.Fatalf("create prompt: %v", err)
	}
}

func decode(t *testing.T, payload []byte) []promptdomain.AgentItem {
	t.Helper()
	var items []promptdomain.AgentItem
	if err := json.Unmarshal(payload, &items); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	return items
}

func TestGetCachesUntilInvalidated(t *testing.T) {
	repo := repository.NewPromptRepository(storetest.Open(t))
	svc := NewService(repo, feedcache.NewMemoryCache(), time.Hour)
	ctx := context.Background()

	seed(t, repo, "first")
	payload, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get feed: %v", err)
	}
	items := decode(t, payload)
	if len(items) != 1 || items[0].Prompt != "first body" || len(items[0].Group) != 1 {
		t.Fatalf("unexpected feed: %+v", items)
	}

	seed(t, repo, "second")
	cached, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get cached feed: %v", err)
	}
	if len(decode(t, cached)) != 1 {
		t.Fatalf("feed should be served from cache")
	}

	if err := svc.Invalidate(ctx, userID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	fresh, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get fresh feed: %v", err)
	}
	if len(decode(t, fresh)) != 2 {
		t.Fatalf("feed should be rebuilt after invalidation")
	}
}

func TestGetEmptyAndMissingUser(t *testing.T) {
	repo := repository.NewPromptRepository(storetest.Open(t))
	cache := feedcache.NewMemoryCache()
	svc := NewService(repo, cache, 0)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "  "); !errors.Is(err, ErrUserIDRequired) {
		t.Fatalf("expected ErrUserIDRequired, got %v", err)
	}
	if _, err := svc.Get(ctx, userID); !errors.Is(err, ErrFeedNotFound) {
		t.Fatalf("expected ErrFeedNotFound, got %v", err)
	}
	if _, ok, _ := cache.Get(ctx, userID); ok {
		t.Fatalf("empty feed must not be cached")
	}
}

func TestGetSurvivesCacheFailure(t *testing.T) {
	repo := repository.NewPromptRepository(storetest.Open(t))
	svc := NewService(repo, brokenCache{}, time.Hour)
	seed(t, repo, "only")

	payload, err := svc.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("cache failure should not fail the request: %v", err)
	}
	if len(decode(t, payload)) != 1 {
		t.Fatalf("unexpected feed payload")
	}
}
