package session

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/spec-kit/marketplace-client/internal/credstore"
	"github.com/spec-kit/marketplace-client/internal/domain"
)

func seedSession(ctx context.Context, store credstore.Store, ident *domain.Identity, expiresAt time.Time) {
	store.Set(ctx, credstore.KeyToken, "persisted-token")
	store.Set(ctx, credstore.KeyTokenExpiresAt, expiresAt.Format(time.RFC3339))
	raw, _ := json.Marshal(ident)
	store.Set(ctx, credstore.KeyIdentity, string(raw))
}

func TestManager_LoadingUntilInitialized(t *testing.T) {
	manager, _, _ := newTestManager(t, &fakeGateway{})
	if !manager.IsLoading() {
		t.Error("expected loading before Initialize")
	}
	manager.Initialize(context.Background())
	if manager.IsLoading() {
		t.Error("expected loading cleared after Initialize")
	}
}

func TestManager_RestoreValidSession(t *testing.T) {
	manager, store, _ := newTestManager(t, &fakeGateway{})
	ctx := context.Background()

	want := &domain.Identity{
		ID:          "7",
		Name:        "Eo",
		Email:       "eo@x.com",
		Roles:       []domain.Role{domain.RoleEOOwner, domain.RoleCustomer},
		CurrentRole: domain.RoleEOOwner,
		CreatedAt:   "2026-01-01T00:00:00Z",
	}
	seedSession(ctx, store, want, time.Now().Add(time.Hour))
	store.Set(ctx, credstore.KeyPendingEmail, "pending@x.com")

	manager.Initialize(ctx)

	if !manager.IsAuthenticated() {
		t.Fatal("expected restored session to be authenticated")
	}
	if got := manager.Identity(); !reflect.DeepEqual(got, want) {
		t.Errorf("restored identity differs:\n got %+v\nwant %+v", got, want)
	}
	if manager.PendingVerificationEmail() != "pending@x.com" {
		t.Error("expected pending email restored")
	}
	if expiresAt, ok := manager.TokenExpiresAt(); !ok || !expiresAt.After(time.Now()) {
		t.Errorf("expected future expiration restored, got %v (present=%v)", expiresAt, ok)
	}
}

func TestManager_RestoreDefaultsMissingRoles(t *testing.T) {
	manager, store, _ := newTestManager(t, &fakeGateway{})
	ctx := context.Background()

	store.Set(ctx, credstore.KeyToken, "persisted-token")
	store.Set(ctx, credstore.KeyTokenExpiresAt, time.Now().Add(time.Hour).Format(time.RFC3339))
	store.Set(ctx, credstore.KeyIdentity, `{"id":"7","name":"Eo","email":"eo@x.com"}`)

	manager.Initialize(ctx)

	ident := manager.Identity()
	if ident == nil {
		t.Fatal("expected restored identity")
	}
	if !reflect.DeepEqual(ident.Roles, []domain.Role{domain.RoleCustomer}) {
		t.Errorf("expected [customer], got %v", ident.Roles)
	}
	if ident.CurrentRole != domain.RoleCustomer {
		t.Errorf("expected customer active, got %v", ident.CurrentRole)
	}
}

func TestManager_RestoreCorruptedIdentity(t *testing.T) {
	manager, store, _ := newTestManager(t, &fakeGateway{})
	ctx := context.Background()

	store.Set(ctx, credstore.KeyToken, "persisted-token")
	store.Set(ctx, credstore.KeyTokenExpiresAt, time.Now().Add(time.Hour).Format(time.RFC3339))
	store.Set(ctx, credstore.KeyIdentity, "{not json")
	store.Set(ctx, credstore.KeyPendingEmail, "pending@x.com")

	manager.Initialize(ctx)

	if manager.IsAuthenticated() {
		t.Error("expected anonymous session after corruption")
	}
	for _, key := range []string{
		credstore.KeyToken, credstore.KeyTokenExpiresAt, credstore.KeyIdentity, credstore.KeyPendingEmail,
	} {
		if _, ok := store.Get(ctx, key); ok {
			t.Errorf("expected key %q removed after corruption", key)
		}
	}
}

func TestManager_RestoreExpiredToken(t *testing.T) {
	manager, store, _ := newTestManager(t, &fakeGateway{})
	ctx := context.Background()

	ident := &domain.Identity{ID: "7", Roles: []domain.Role{domain.RoleCustomer}, CurrentRole: domain.RoleCustomer}
	seedSession(ctx, store, ident, time.Now().Add(-time.Minute))

	manager.Initialize(ctx)

	if manager.IsAuthenticated() {
		t.Error("expected anonymous session after expired restore")
	}
	if _, ok := store.Get(ctx, credstore.KeyToken); ok {
		t.Error("expected expired token discarded")
	}
	if _, ok := store.Get(ctx, credstore.KeyTokenExpiresAt); ok {
		t.Error("expected expiration discarded")
	}
	if _, ok := manager.TokenExpiresAt(); ok {
		t.Error("expected no in-memory expiration")
	}
}

func TestManager_RestoreIdentityWithoutToken(t *testing.T) {
	manager, store, _ := newTestManager(t, &fakeGateway{})
	ctx := context.Background()

	raw, _ := json.Marshal(&domain.Identity{ID: "7", Roles: []domain.Role{domain.RoleCustomer}, CurrentRole: domain.RoleCustomer})
	store.Set(ctx, credstore.KeyIdentity, string(raw))

	manager.Initialize(ctx)

	if manager.IsAuthenticated() {
		t.Error("identity must not restore without a token")
	}
	if _, ok := store.Get(ctx, credstore.KeyIdentity); ok {
		t.Error("expected orphaned identity record removed")
	}
}

func TestManager_RestorePendingEmailOnly(t *testing.T) {
	manager, store, _ := newTestManager(t, &fakeGateway{})
	ctx := context.Background()
	store.Set(ctx, credstore.KeyPendingEmail, "pending@x.com")

	manager.Initialize(ctx)

	if manager.IsAuthenticated() {
		t.Error("expected anonymous session")
	}
	if manager.PendingVerificationEmail() != "pending@x.com" {
		t.Error("expected pending email restored without identity")
	}
}
