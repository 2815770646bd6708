package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"testing"

	"github.com/TobiWan1995/statemcp/pkg/adapters/memory"
	"github.com/TobiWan1995/statemcp/pkg/domain"
	"github.com/TobiWan1995/statemcp/pkg/persistence/middleware"
	"github.com/TobiWan1995/statemcp/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.New()
	key := generateKey(t)
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
	secureStore := mw(underlying)

	ctx := context.Background()
	sessionID := "test-session"
	original := &domain.SessionState{Current: "review_pending", Concluded: true}

	if err := secureStore.Save(ctx, sessionID, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The underlying record must not leak the workflow position.
	stored, err := underlying.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("underlying load failed: %v", err)
	}
	if !strings.HasPrefix(stored.Current, "enc:") {
		t.Fatalf("expected encrypted envelope, got %q", stored.Current)
	}
	if strings.Contains(stored.Current, "review_pending") {
		t.Fatal("plaintext state leaked into the underlying store")
	}
	if stored.Concluded {
		t.Fatal("envelope must not carry the concluded flag")
	}

	loaded, err := secureStore.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Load via middleware failed: %v", err)
	}
	if loaded.Current != "review_pending" {
		t.Errorf("expected 'review_pending', got %q", loaded.Current)
	}
	if !loaded.Concluded {
		t.Error("expected concluded flag to survive the roundtrip")
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.New()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	ctx := context.Background()
	sessionID := "rotation-session"

	// Save with the old key.
	mwOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})
	if err := mwOld(underlying).Save(ctx, sessionID, &domain.SessionState{Current: "drafting"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Load with the new key active and the old key as fallback.
	mwNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	loaded, err := mwNew(underlying).Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Load with rotated keys failed: %v", err)
	}
	if loaded.Current != "drafting" {
		t.Errorf("expected 'drafting', got %q", loaded.Current)
	}
}

func TestEncryptionMiddleware_WrongKey(t *testing.T) {
	underlying := memory.New()
	ctx := context.Background()

	mwA := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	if err := mwA(underlying).Save(ctx, "s1", &domain.SessionState{Current: "drafting"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mwB := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	if _, err := mwB(underlying).Load(ctx, "s1"); err == nil {
		t.Fatal("expected decryption failure with an unrelated key")
	}
}

func TestEncryptionMiddleware_RejectsPlainRecord(t *testing.T) {
	underlying := memory.New()
	ctx := context.Background()

	// A plain record written past the middleware must not be served.
	if err := underlying.Save(ctx, "s1", &domain.SessionState{Current: "drafting"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	if _, err := mw(underlying).Load(ctx, "s1"); err == nil {
		t.Fatal("expected an error for a record without the encryption envelope")
	}
}

func TestEncryptionMiddleware_SatisfiesStoreContract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunSessionStoreContract(t, mw(memory.New()))
}
