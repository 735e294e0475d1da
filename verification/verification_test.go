package verification

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/authgate/internal/testutil"
	"github.com/MrEthical07/authgate/store"
)

func TestSecondRequestInvalidatesFirst(t *testing.T) {
	st := testutil.NewStore(t)
	ctx := context.Background()
	if _, err := st.CreateUser(ctx, store.NewUser{ID: 1, Email: "a@example.com", Username: "alice", PasswordHash: "h", RecoveryCode: []byte{1}}); err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	m := NewManager(st, Config{}).WithClock(func() time.Time { return now })

	first, err := m.Create(ctx, 1, "a@example.com")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	second, err := m.Create(ctx, 1, "a@example.com")
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("request ids must be unique")
	}

	got, err := m.Get(ctx, 1, first.ID)
	if err != nil || got != nil {
		t.Fatalf("first request should no longer resolve: %v %v", got, err)
	}
	got, err = m.Get(ctx, 1, second.ID)
	if err != nil || got == nil || got.Code != second.Code {
		t.Fatalf("Get() = %+v, %v", got, err)
	}
	if got, _ := m.Get(ctx, 2, second.ID); got != nil {
		t.Fatal("request must be scoped to its user")
	}

	if m.Expired(got) {
		t.Fatal("fresh request reported expired")
	}
	now = now.Add(DefaultLifetime)
	if !m.Expired(got) {
		t.Fatal("request should expire after 10 minutes")
	}
}

func TestCodeMatches(t *testing.T) {
	if !CodeMatches("12345678", "12345678") || CodeMatches("12345678", "12345679") || CodeMatches("1", "") {
		t.Fatal("unexpected comparison result")
	}
}
