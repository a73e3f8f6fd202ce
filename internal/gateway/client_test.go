package gateway

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-client/internal/backendtest"
	"github.com/spec-kit/marketplace-client/internal/config"
	"github.com/spec-kit/marketplace-client/internal/credstore"
	"github.com/spec-kit/marketplace-client/internal/expiry"
	"github.com/spec-kit/marketplace-client/internal/observability"
	"github.com/spec-kit/marketplace-client/pkg/util"
)

func newTestClient(t *testing.T, clock *expiry.Clock) (*Client, *backendtest.Server) {
	t.Helper()
	server, err := backendtest.NewServer()
	if err != nil {
		t.Fatalf("failed to start fake backend: %v", err)
	}
	t.Cleanup(server.Close)

	cfg := config.BackendConfig{BaseURL: server.URL, TimeoutSeconds: 5}
	client := NewClient(cfg, clock, zap.NewNop(), observability.NewMetrics())
	return client, server
}

func TestClient_LoginSuccess(t *testing.T) {
	client, server := newTestClient(t, nil)
	account := server.AddAccount("Eo", "eo@x.com", "pw", []string{"eo-owner", "customer"})
	ctx := context.Background()

	result, err := client.Login(ctx, "eo@x.com", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Token == "" {
		t.Error("expected access token")
	}
	if result.ExpiresInMinutes != 480 {
		t.Errorf("expected 480 minute expiry, got %d", result.ExpiresInMinutes)
	}
	if result.User.ID.String() != account.ID {
		t.Errorf("expected user id %q, got %q", account.ID, result.User.ID)
	}
	if len(result.User.Roles) != 2 || result.User.Roles[0] != "eo-owner" {
		t.Errorf("unexpected roles: %v", result.User.Roles)
	}
}

func TestClient_LoginRejected(t *testing.T) {
	client, server := newTestClient(t, nil)
	server.AddAccount("Eo", "eo@x.com", "pw", []string{"customer"})
	ctx := context.Background()

	_, err := client.Login(ctx, "eo@x.com", "wrong")
	if err == nil {
		t.Fatal("expected error for bad credentials")
	}
	if !util.HasCode(err, util.CodeRejected) {
		t.Errorf("expected REJECTED, got %v", err)
	}
	if authErr := util.ToAuthError(err); authErr.Message != "Invalid credentials" {
		t.Errorf("expected backend message carried, got %q", authErr.Message)
	}
}

func TestClient_LoginForcedFailureMessage(t *testing.T) {
	client, server := newTestClient(t, nil)
	server.FailLogin("Account locked")
	ctx := context.Background()

	_, err := client.Login(ctx, "any@x.com", "pw")
	if authErr := util.ToAuthError(err); authErr == nil || authErr.Message != "Account locked" {
		t.Fatalf("expected forced message, got %v", err)
	}
}

func TestClient_RegisterAndVerifyOTP(t *testing.T) {
	client, server := newTestClient(t, nil)
	ctx := context.Background()

	reg, err := client.Register(ctx, RegisterRequest{
		Name:                 "New",
		Email:                "new@x.com",
		Password:             "pw",
		PasswordConfirmation: "pw",
		TNCAccepted:          true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Email != "new@x.com" {
		t.Errorf("expected pending email, got %q", reg.Email)
	}
	if reg.OTPCode == "" || reg.OTPCode != server.OTPFor("new@x.com") {
		t.Errorf("expected test OTP code exposed, got %q", reg.OTPCode)
	}

	if _, err := client.VerifyOTP(ctx, "new@x.com", "bogus"); !util.HasCode(err, util.CodeRejected) {
		t.Errorf("expected REJECTED for wrong code, got %v", err)
	}

	result, err := client.VerifyOTP(ctx, "new@x.com", reg.OTPCode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Token == "" || result.User.Email != "new@x.com" {
		t.Errorf("incomplete verify result: %+v", result)
	}
}

func TestClient_RegisterMismatchedConfirmation(t *testing.T) {
	client, _ := newTestClient(t, nil)

	_, err := client.Register(context.Background(), RegisterRequest{
		Name:                 "New",
		Email:                "new@x.com",
		Password:             "pw",
		PasswordConfirmation: "other",
		TNCAccepted:          true,
	})
	if !util.HasCode(err, util.CodeRejected) {
		t.Errorf("expected REJECTED, got %v", err)
	}
}

func TestClient_WhoAmI(t *testing.T) {
	client, server := newTestClient(t, nil)
	server.AddAccount("Eo", "eo@x.com", "pw", []string{"customer"})
	ctx := context.Background()

	result, err := client.Login(ctx, "eo@x.com", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user, err := client.WhoAmI(ctx, result.Token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "eo@x.com" {
		t.Errorf("expected eo@x.com, got %q", user.Email)
	}

	if _, err := client.WhoAmI(ctx, "garbage-token"); !util.HasCode(err, util.CodeUnauthorized) {
		t.Errorf("expected UNAUTHORIZED for invalid token, got %v", err)
	}

	server.ForceWhoAmIStatus(http.StatusUnauthorized)
	if _, err := client.WhoAmI(ctx, result.Token); !util.HasCode(err, util.CodeUnauthorized) {
		t.Errorf("expected UNAUTHORIZED when forced, got %v", err)
	}
}

func TestClient_TransportFailure(t *testing.T) {
	client, server := newTestClient(t, nil)
	server.Close()

	_, err := client.Login(context.Background(), "eo@x.com", "pw")
	if !util.HasCode(err, util.CodeTransportFailed) {
		t.Errorf("expected TRANSPORT_FAILED, got %v", err)
	}
}

func TestClient_LocalExpiryShortCircuit(t *testing.T) {
	store := credstore.NewMemory()
	ctx := context.Background()
	store.Set(ctx, credstore.KeyTokenExpiresAt, time.Now().Add(-time.Hour).Format(time.RFC3339))
	clock := expiry.NewClock(store)

	client, server := newTestClient(t, clock)
	server.Close() // the call must not reach the network

	if _, err := client.WhoAmI(ctx, "tok"); !util.HasCode(err, util.CodeSessionExpired) {
		t.Errorf("expected SESSION_EXPIRED, got %v", err)
	}
	if err := client.Logout(ctx, "tok"); !util.HasCode(err, util.CodeSessionExpired) {
		t.Errorf("expected SESSION_EXPIRED, got %v", err)
	}
}
