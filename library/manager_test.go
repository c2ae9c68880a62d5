package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fakeClock is a controllable time source.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AdvanceDays(days int) {
	c.now = c.now.Add(time.Duration(days) * day)
}

func newManager(t *testing.T, clock *fakeClock) *LibraryManager {
	t.Helper()
	opts := DefaultOptions()
	opts.PasswordCost = bcrypt.MinCost
	opts.Clock = clock.Now
	mgr, err := NewLibraryManager(opts)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func newSeededManager(t *testing.T, clock *fakeClock) *LibraryManager {
	t.Helper()
	mgr := newManager(t, clock)
	require.NoError(t, mgr.Seed())
	return mgr
}

func TestSeed(t *testing.T) {
	mgr := newSeededManager(t, newFakeClock())

	books, err := mgr.Lending().Books()
	require.NoError(t, err)
	require.Len(t, books, 5)
	for i, b := range books {
		assert.Equal(t, int64(i+1), b.ID)
		assert.True(t, b.IsAvailable())
	}
	assert.Equal(t, "The Hobbit", books[0].Title)
	assert.Equal(t, "F. Scott Fitzgerald", books[4].Author)

	users, err := mgr.Users().List()
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Username)
	assert.Equal(t, "user", users[1].Username)

	_, err = mgr.Users().Authenticate("admin", "admin123")
	assert.NoError(t, err)
	_, err = mgr.Users().Authenticate("user", "user123")
	assert.NoError(t, err)

	history, err := mgr.Lending().History()
	require.NoError(t, err)
	assert.Empty(t, history, "seeding writes no ledger entries")
}

func TestSeedTwiceFails(t *testing.T) {
	mgr := newSeededManager(t, newFakeClock())
	assert.ErrorIs(t, mgr.Seed(), ErrDuplicateID)
}

func TestZeroPolicyFallsBackToDefault(t *testing.T) {
	mgr := newManager(t, newFakeClock())
	assert.Equal(t, DefaultPolicy(), mgr.Lending().Policy())
}

func TestNewLibraryManagerFillsOutOfRangePolicy(t *testing.T) {
	opts := DefaultOptions()
	opts.PasswordCost = bcrypt.MinCost
	opts.Policy = Policy{MaxActiveBorrows: 2}
	mgr, err := NewLibraryManager(opts)
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })

	assert.Equal(t, Policy{MaxActiveBorrows: 2, GracePeriodDays: 0, FinePerDay: 1}, mgr.Lending().Policy())
}
