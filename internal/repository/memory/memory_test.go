package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/contact-service/internal/domain"
	"github.com/spec-kit/contact-service/internal/repository"
)

func counterGenerator() repository.SecretGenerator {
	var n int64
	return func() (string, error) {
		return fmt.Sprintf("tok-%d", atomic.AddInt64(&n, 1)), nil
	}
}

func TestUsers_UniqueCaseInsensitive(t *testing.T) {
	users := NewUsers()
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &domain.User{Username: "alice", Email: "alice@x.com"}))
	err := users.Create(ctx, &domain.User{Username: "ALICE", Email: "other@x.com"})
	require.ErrorIs(t, err, repository.ErrDuplicate)
	err = users.Create(ctx, &domain.User{Username: "bob", Email: "Alice@X.com"})
	require.ErrorIs(t, err, repository.ErrDuplicate)

	found, err := users.GetByEmail(ctx, "ALICE@x.com")
	require.NoError(t, err)
	require.Equal(t, "alice", found.Username)

	_, err = users.GetByUsername(ctx, "carol")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUsers_GetReturnsCopy(t *testing.T) {
	users := NewUsers()
	ctx := context.Background()
	u := &domain.User{Username: "alice", Email: "alice@x.com", PasswordHash: "h1"}
	require.NoError(t, users.Create(ctx, u))

	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	got.PasswordHash = "mutated"

	again, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "h1", again.PasswordHash)
}

func TestRefreshTokens_ConsumeOnce(t *testing.T) {
	users := NewUsers()
	ctx := context.Background()
	u := &domain.User{Username: "alice", Email: "alice@x.com"}
	require.NoError(t, users.Create(ctx, u))

	store := NewRefreshTokens(users, repository.RefreshTokenOptions{Generate: counterGenerator()})
	rt, err := store.Create(ctx, u.ID)
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, rt.Token); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, wins)

	stored, ok := store.Get(rt.Token)
	require.True(t, ok)
	require.True(t, stored.Used)
	require.False(t, stored.Revoked)
}

func TestRefreshTokens_UnknownUserAndExpiry(t *testing.T) {
	users := NewUsers()
	ctx := context.Background()
	u := &domain.User{Username: "alice", Email: "alice@x.com"}
	require.NoError(t, users.Create(ctx, u))

	now := time.Now()
	store := NewRefreshTokens(users, repository.RefreshTokenOptions{
		TTL:      time.Minute,
		Generate: counterGenerator(),
		Now:      func() time.Time { return now },
	})

	_, err := store.Create(ctx, "ghost")
	require.ErrorIs(t, err, repository.ErrUnknownUser)

	rt, err := store.Create(ctx, u.ID)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Lookup(ctx, rt.Token)
	require.ErrorIs(t, err, repository.ErrNotFound)

	ok, err := store.MarkRevoked(ctx, rt.Token)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestContacts_ListSearchAndPaging(t *testing.T) {
	contacts := NewContacts()
	ctx := context.Background()
	for _, c := range []domain.Contact{
		{UserID: "u-1", FirstName: "Bob", LastName: "Adams", EmailAddress: "bob@x.com"},
		{UserID: "u-1", FirstName: "Carol", LastName: "Baker", EmailAddress: "carol@x.com"},
		{UserID: "u-1", FirstName: "Bobby", LastName: "Clark", EmailAddress: "bobby@x.com"},
		{UserID: "u-2", FirstName: "Bob", LastName: "Other", EmailAddress: "bob@y.com"},
	} {
		c := c
		require.NoError(t, contacts.Create(ctx, &c))
	}

	items, total, err := contacts.List(ctx, repository.ContactFilter{UserID: "u-1", SearchTerm: "BOB"})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "Adams", items[0].LastName)
	require.Equal(t, "Clark", items[1].LastName)

	items, total, err = contacts.List(ctx, repository.ContactFilter{UserID: "u-1", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, items, 1)
	require.Equal(t, "Baker", items[0].LastName)
}

func TestContacts_OwnerScoping(t *testing.T) {
	contacts := NewContacts()
	ctx := context.Background()
	c := &domain.Contact{UserID: "u-1", FirstName: "Bob"}
	require.NoError(t, contacts.Create(ctx, c))

	_, err := contacts.GetByID(ctx, "u-2", c.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.ErrorIs(t, contacts.Delete(ctx, "u-2", c.ID), repository.ErrNotFound)
	require.ErrorIs(t, contacts.Update(ctx, &domain.Contact{ID: c.ID, UserID: "u-2"}), repository.ErrNotFound)

	require.NoError(t, contacts.Delete(ctx, "u-1", c.ID))
}
