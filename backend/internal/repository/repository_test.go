package repository

import (
	"context"
	"errors"
	"testing"

	promptdomain "prompt-vault/backend/internal/domain/prompt"
	userdomain "prompt-vault/backend/internal/domain/user"
	"prompt-vault/backend/internal/infra/store"
	"prompt-vault/backend/internal/infra/store/storetest"

	"gorm.io/gorm"
)

func seedPrompt(t *testing.T, repo *PromptRepository, userID, name string, groups ...string) *promptdomain.Prompt {
	t.Helper()
	entity := &promptdomain.Prompt{
		UserID: userID,
		Name:   name,
		Body:   "body of " + name,
		Groups: promptdomain.EncodeGroups(groups),
	}
	if err := repo.Create(context.Background(), entity); err != nil {
		t.Fatalf("create prompt %s: %v", name, err)
	}
	return entity
}

func TestUserRepositoryDuplicateEmail(t *testing.T) {
	repo := NewUserRepository(storetest.Open(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &userdomain.User{Email: "a@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.Create(ctx, &userdomain.User{Email: "a@example.com"})
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key, got %v", err)
	}

	found, err := repo.FindByEmail(ctx, "a@example.com")
	if err != nil || found.ID == "" {
		t.Fatalf("find by email: %v", err)
	}
	if err := repo.UpdateProfile(ctx, found.ID, map[string]any{"name": "Alice"}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if err := repo.UpdatePassword(ctx, "missing", "hash"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found for missing user, got %v", err)
	}
}

func TestPromptRepositoryListByGroup(t *testing.T) {
	repo := NewPromptRepository(storetest.Open(t))
	ctx := context.Background()

	seedPrompt(t, repo, "u1", "a", "写作", "工具")
	seedPrompt(t, repo, "u1", "b", "工具")
	seedPrompt(t, repo, "u1", "c")
	seedPrompt(t, repo, "u2", "d", "工具")

	items, total, err := repo.ListByUser(ctx, PromptListFilter{UserID: "u1", Group: "工具", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 prompts in group, got total=%d len=%d", total, len(items))
	}

	items, total, err = repo.ListByUser(ctx, PromptListFilter{UserID: "u1", Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if total != 3 || len(items) != 1 {
		t.Fatalf("unexpected pagination total=%d len=%d", total, len(items))
	}
}

func TestPromptRepositoryNextVersionIsSequential(t *testing.T) {
	acc := storetest.Open(t)
	repo := NewPromptRepository(acc)
	ctx := context.Background()
	entity := seedPrompt(t, repo, "u1", "a")

	for want := 1; want <= 3; want++ {
		err := store.Transaction(ctx, acc, func(tx *gorm.DB) error {
			txRepo := repo.WithTx(tx)
			n, err := txRepo.NextVersion(ctx, entity.ID)
			if err != nil {
				return err
			}
			if n != want {
				t.Fatalf("expected version %d, got %d", want, n)
			}
			return txRepo.CreateVersion(ctx, &promptdomain.PromptVersion{PromptID: entity.ID, Version: n, Name: "a", Body: "x", CreatedBy: "u1"})
		})
		if err != nil {
			t.Fatalf("snapshot %d: %v", want, err)
		}
	}

	versions, err := repo.ListVersions(ctx, entity.ID)
	if err != nil || len(versions) != 3 || versions[0].Version != 3 {
		t.Fatalf("expected newest-first versions, got %+v err=%v", versions, err)
	}

	dup := &promptdomain.PromptVersion{PromptID: entity.ID, Version: 2, Name: "a", Body: "x", CreatedBy: "u1"}
	if err := repo.CreateVersion(ctx, dup); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("duplicate version number must be rejected, got %v", err)
	}

	if _, err := repo.NextVersion(ctx, "missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarketRepositoryFavoritesAndUpsert(t *testing.T) {
	acc := storetest.Open(t)
	repo := NewMarketRepository(acc)
	ctx := context.Background()
	origin := "7c1f2d9e-0000-4000-8000-000000000001"
	owner := "u1"

	listing := &promptdomain.MarketPrompt{OriginalPromptID: &origin, UserID: &owner, Name: "Alpha", Body: "x"}
	created, err := repo.InsertIgnore(ctx, listing)
	if err != nil || !created {
		t.Fatalf("first insert should create, created=%v err=%v", created, err)
	}
	again := &promptdomain.MarketPrompt{OriginalPromptID: &origin, UserID: &owner, Name: "Alpha 2", Body: "y"}
	created, err = repo.InsertIgnore(ctx, again)
	if err != nil || created {
		t.Fatalf("conflicting insert should be ignored, created=%v err=%v", created, err)
	}

	inserted, err := repo.InsertFavorite(ctx, &promptdomain.Favorite{UserID: "u2", MarketPromptID: listing.ID})
	if err != nil || !inserted {
		t.Fatalf("insert favorite: %v %v", inserted, err)
	}
	inserted, _ = repo.InsertFavorite(ctx, &promptdomain.Favorite{UserID: "u2", MarketPromptID: listing.ID})
	if inserted {
		t.Fatalf("duplicate favorite must be ignored")
	}

	if err := repo.AdjustFavoriteCount(ctx, listing.ID, 1); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := repo.AdjustFavoriteCount(ctx, listing.ID, -1); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if err := repo.AdjustFavoriteCount(ctx, listing.ID, -1); err != nil {
		t.Fatalf("decrement at zero: %v", err)
	}
	if count, _ := repo.FavoriteCount(ctx, listing.ID); count != 0 {
		t.Fatalf("favorite count must not go negative, got %d", count)
	}

	favored, err := repo.FavoritedAmong(ctx, "u2", []string{listing.ID, "other"})
	if err != nil || !favored[listing.ID] || favored["other"] {
		t.Fatalf("unexpected favorited set %v err=%v", favored, err)
	}
}

func TestMarketRepositorySearchAndOrder(t *testing.T) {
	repo := NewMarketRepository(storetest.Open(t))
	ctx := context.Background()

	seed := []promptdomain.MarketPrompt{
		{Name: "Translator", Description: "多语言翻译", Body: "x", FavoriteCount: 1, Groups: promptdomain.EncodeGroups([]string{"工具"})},
		{Name: "Poet", Description: "writes 100% poems", Body: "x", FavoriteCount: 5, Groups: promptdomain.EncodeGroups([]string{"写作"})},
		{Name: "Coder", Description: "code helper", Body: "x", FavoriteCount: 3, Groups: promptdomain.EncodeGroups([]string{"工具"})},
	}
	if n, err := repo.CreateBatch(ctx, seed); err != nil || n != 3 {
		t.Fatalf("seed: n=%d err=%v", n, err)
	}

	items, total, err := repo.List(ctx, MarketListFilter{Limit: 10})
	if err != nil || total != 3 {
		t.Fatalf("list: total=%d err=%v", total, err)
	}
	if items[0].Name != "Poet" || items[1].Name != "Coder" || items[2].Name != "Translator" {
		t.Fatalf("unexpected order %s,%s,%s", items[0].Name, items[1].Name, items[2].Name)
	}

	items, _, _ = repo.List(ctx, MarketListFilter{Search: "TRANS", Limit: 10})
	if len(items) != 1 || items[0].Name != "Translator" {
		t.Fatalf("case-insensitive search failed: %+v", items)
	}
	items, _, _ = repo.List(ctx, MarketListFilter{Search: "100%", Limit: 10})
	if len(items) != 1 || items[0].Name != "Poet" {
		t.Fatalf("wildcards must be escaped: %+v", items)
	}
	items, _, _ = repo.List(ctx, MarketListFilter{Group: "工具", Limit: 10})
	if len(items) != 2 {
		t.Fatalf("group filter failed: %+v", items)
	}

	removed, err := repo.DeleteSeeded(ctx)
	if err != nil || removed != 3 {
		t.Fatalf("delete seeded: removed=%d err=%v", removed, err)
	}
}

func TestCollectionRepository(t *testing.T) {
	acc := storetest.Open(t)
	users := NewUserRepository(acc)
	ctx := context.Background()
	hash := "secret-hash"
	u := &userdomain.User{Email: "a@example.com", PasswordHash: &hash}
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	repo := NewCollectionRepository(acc)
	rows, err := repo.List(ctx, userdomain.CollectionUsers, 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("list users: %v %v", rows, err)
	}
	if _, ok := rows[0]["password_hash"]; ok {
		t.Fatalf("password hash must be redacted")
	}

	row, err := repo.Get(ctx, userdomain.CollectionUsers, u.ID)
	if err != nil || row["email"] != "a@example.com" {
		t.Fatalf("get user: %v %v", row, err)
	}
	if _, err := repo.Get(ctx, userdomain.CollectionUsers, "missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := repo.List(ctx, "secrets", 10); !errors.Is(err, store.ErrUnknownCollection) {
		t.Fatalf("expected unknown collection, got %v", err)
	}
}
