package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPepper = "pepper"

type mockCouponRepo struct {
	byHash       map[string]*Coupon
	findErr      error
	guestUses    map[string]int
	guestErr     error
	guestCalls   [][]string
	incrementErr error
	redemptions  []Redemption
	hashes       []string
}

func newMockRepo(codes map[string]*Coupon) *mockCouponRepo {
	m := &mockCouponRepo{byHash: make(map[string]*Coupon), guestUses: make(map[string]int)}
	for code, c := range codes {
		h := HashCode(code, testPepper)
		m.byHash[h] = c
		m.hashes = append(m.hashes, h)
	}
	return m
}

func (m *mockCouponRepo) FindByHash(_ context.Context, hash string) (*Coupon, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockCouponRepo) FindByPrefix(_ context.Context, prefix string) ([]Coupon, error) {
	var out []Coupon
	for _, c := range m.byHash {
		if c.CodePrefix == prefix {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockCouponRepo) GuestUsage(_ context.Context, _ string, guestKeys []string) (int, error) {
	m.guestCalls = append(m.guestCalls, guestKeys)
	uses := 0
	for _, k := range guestKeys {
		uses = max(uses, m.guestUses[k])
	}
	return uses, m.guestErr
}

func (m *mockCouponRepo) IncrementUsage(_ context.Context, r Redemption) error {
	if m.incrementErr != nil {
		return m.incrementErr
	}
	m.redemptions = append(m.redemptions, r)
	for _, k := range r.GuestKeys {
		m.guestUses[k]++
	}
	return nil
}

func (m *mockCouponRepo) ListHashes(_ context.Context) ([]string, error) {
	return m.hashes, nil
}

func newTestValidator(repo Repository, opts ...Option) *RepoValidator {
	v := NewRepoValidator(repo, testPepper, opts...)
	v.now = func() time.Time { return evalNow }
	return v
}

func TestRepoValidator_Validate(t *testing.T) {
	save10 := percentCoupon("10")

	tests := []struct {
		name      string
		repo      *mockCouponRepo
		in        Input
		want      Reason
		wantTotal string
	}{
		{
			name:      "valid code returns discount",
			repo:      newMockRepo(map[string]*Coupon{"SAVE10": save10}),
			in:        Input{Code: "SAVE10", Subtotal: subtotal("200")},
			want:      ReasonOK,
			wantTotal: "180.00",
		},
		{
			name:      "code is normalized before hashing",
			repo:      newMockRepo(map[string]*Coupon{"SAVE10": save10}),
			in:        Input{Code: "  save 10\t", Subtotal: subtotal("200")},
			want:      ReasonOK,
			wantTotal: "180.00",
		},
		{
			name: "unknown code",
			repo: newMockRepo(map[string]*Coupon{"SAVE10": save10}),
			in:   Input{Code: "BOGUS", Subtotal: subtotal("200")},
			want: ReasonInvalidCode,
		},
		{
			name: "empty code",
			repo: newMockRepo(nil),
			in:   Input{Code: "   ", Subtotal: subtotal("200")},
			want: ReasonInvalidCode,
		},
		{
			name: "missing subtotal checked before lookup",
			repo: &mockCouponRepo{findErr: errors.New("must not be called")},
			in:   Input{Code: "SAVE10"},
			want: ReasonMissingSubtotal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(tt.repo)

			got, err := v.Validate(context.Background(), tt.in)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Reason)
			if tt.wantTotal != "" {
				assert.Equal(t, tt.wantTotal, got.Total.StringFixed(2))
			}
		})
	}
}

func TestRepoValidator_StoreError(t *testing.T) {
	v := newTestValidator(&mockCouponRepo{findErr: errors.New("db down")})

	_, err := v.Validate(context.Background(), Input{Code: "SAVE10", Subtotal: subtotal("10")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup coupon")
}

func TestRepoValidator_GuestUsage(t *testing.T) {
	c := percentCoupon("10")
	c.PerGuestLimit = 2

	t.Run("looked up by normalized email and phone", func(t *testing.T) {
		repo := newMockRepo(map[string]*Coupon{"ONCE": c})
		repo.guestUses["guest@example.com"] = 2
		v := newTestValidator(repo)

		got, err := v.Validate(context.Background(), Input{
			Code:       "once",
			Subtotal:   subtotal("50"),
			GuestEmail: " Guest@Example.com ",
			GuestPhone: "+1 555",
		})

		require.NoError(t, err)
		assert.Equal(t, ReasonGuestUsageLimitReached, got.Reason)
		assert.Equal(t, [][]string{{"guest@example.com", "1555"}}, repo.guestCalls)
	})

	t.Run("switching identifier keeps the count", func(t *testing.T) {
		once := percentCoupon("10")
		once.ID = "c-once"
		once.PerGuestLimit = 1
		repo := newMockRepo(map[string]*Coupon{"ONCE": once})
		v := newTestValidator(repo)

		require.NoError(t, v.Redeem(context.Background(), Redemption{
			CouponID:  once.ID,
			GuestKeys: GuestKeys("ada@example.com", "+1 555 0100"),
			BookingID: "b-1",
		}))

		got, err := v.Validate(context.Background(), Input{Code: "ONCE", Subtotal: subtotal("50"), GuestPhone: "1-555-0100"})
		require.NoError(t, err)
		assert.Equal(t, ReasonGuestUsageLimitReached, got.Reason)

		got, err = v.Validate(context.Background(), Input{Code: "ONCE", Subtotal: subtotal("50"), GuestEmail: "ADA@example.com"})
		require.NoError(t, err)
		assert.Equal(t, ReasonGuestUsageLimitReached, got.Reason)

		got, err = v.Validate(context.Background(), Input{Code: "ONCE", Subtotal: subtotal("50"), GuestEmail: "other@example.com"})
		require.NoError(t, err)
		assert.Equal(t, ReasonOK, got.Reason)
	})

	t.Run("skipped without per-guest limit", func(t *testing.T) {
		repo := newMockRepo(map[string]*Coupon{"SAVE10": percentCoupon("10")})
		v := newTestValidator(repo)

		_, err := v.Validate(context.Background(), Input{Code: "SAVE10", Subtotal: subtotal("50"), GuestEmail: "a@b.c"})

		require.NoError(t, err)
		assert.Empty(t, repo.guestCalls)
	})

	t.Run("store error", func(t *testing.T) {
		repo := newMockRepo(map[string]*Coupon{"ONCE": c})
		repo.guestErr = errors.New("timeout")
		v := newTestValidator(repo)

		_, err := v.Validate(context.Background(), Input{Code: "ONCE", Subtotal: subtotal("50"), GuestPhone: "555"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "lookup guest usage")
	})
}

func TestRepoValidator_CouponStoredAfterMiss(t *testing.T) {
	repo := newMockRepo(nil)
	v := newTestValidator(repo)

	got, err := v.Validate(context.Background(), Input{Code: "SAVE10", Subtotal: subtotal("200")})
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalidCode, got.Reason)

	// Written by another process after the first lookup.
	repo.byHash[HashCode("SAVE10", testPepper)] = percentCoupon("10")

	got, err = v.Validate(context.Background(), Input{Code: "save10", Subtotal: subtotal("200")})
	require.NoError(t, err)
	assert.Equal(t, ReasonOK, got.Reason)
	assert.Equal(t, "180.00", got.Total.StringFixed(2))
}

func TestRepoValidator_Redeem(t *testing.T) {
	repo := newMockRepo(nil)
	v := newTestValidator(repo)

	r := Redemption{CouponID: "c-1", GuestKeys: []string{"guest@example.com"}, BookingID: "b-1"}
	require.NoError(t, v.Redeem(context.Background(), r))
	assert.Equal(t, []Redemption{r}, repo.redemptions)

	repo.incrementErr = ErrUsageLimitReached
	err := v.Redeem(context.Background(), r)
	require.ErrorIs(t, err, ErrUsageLimitReached)

	repo.incrementErr = errors.New("db error")
	err = v.Redeem(context.Background(), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "increment coupon usage")
}

func TestValidateDoesNotIncrementUsage(t *testing.T) {
	repo := newMockRepo(map[string]*Coupon{"SAVE10": percentCoupon("10")})
	v := newTestValidator(repo)

	_, err := v.Validate(context.Background(), Input{Code: "SAVE10", Subtotal: subtotal("100")})

	require.NoError(t, err)
	assert.Empty(t, repo.redemptions)
}
