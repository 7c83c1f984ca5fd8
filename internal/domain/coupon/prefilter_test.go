package coupon

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hashList struct {
	hashes []string
	err    error
}

func (l hashList) ListHashes(context.Context) ([]string, error) {
	return l.hashes, l.err
}

func TestPrefilter(t *testing.T) {
	pf := NewPrefilter(10, 0.0001)
	assert.False(t, pf.MayContain("abc"))

	pf.Add("abc")
	assert.True(t, pf.MayContain("abc"))

	t.Run("reload replaces contents", func(t *testing.T) {
		n, err := pf.Reload(context.Background(), hashList{hashes: []string{"x", "y"}})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.True(t, pf.MayContain("x"))
		assert.True(t, pf.MayContain("y"))
		assert.False(t, pf.MayContain("abc"))
	})

	t.Run("reload grows past capacity", func(t *testing.T) {
		hashes := make([]string, 100)
		for i := range hashes {
			hashes[i] = HashCode(fmt.Sprintf("CODE%d", i), testPepper)
		}
		n, err := pf.Reload(context.Background(), hashList{hashes: hashes})
		require.NoError(t, err)
		assert.Equal(t, 100, n)
		for _, h := range hashes {
			assert.True(t, pf.MayContain(h))
		}
	})

	t.Run("reload error keeps previous filter", func(t *testing.T) {
		_, err := pf.Reload(context.Background(), hashList{err: errors.New("boom")})
		require.Error(t, err)
		assert.True(t, pf.MayContain(HashCode("CODE1", testPepper)))
	})
}

type addingLister struct {
	pf     *Prefilter
	hashes []string
}

func (l addingLister) ListHashes(context.Context) ([]string, error) {
	// A coupon issued while the store is being listed.
	l.pf.Add("issued-during-reload")
	return l.hashes, nil
}

func TestPrefilter_ReloadKeepsConcurrentAdds(t *testing.T) {
	pf := NewPrefilter(10, 0.0001)

	_, err := pf.Reload(context.Background(), addingLister{pf: pf, hashes: []string{"a"}})
	require.NoError(t, err)

	assert.True(t, pf.MayContain("a"))
	assert.True(t, pf.MayContain("issued-during-reload"))
}
