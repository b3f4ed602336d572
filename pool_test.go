package pmemobj

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pool")
	p, err := Create(path, 1<<20, "testlayout", Options{Nlanes: 2})
	require.NoError(t, err)

	oid, err := p.Root(64)
	require.NoError(t, err)
	require.False(t, oid.IsNull())
	require.NoError(t, p.Close())

	p2, err := Open(path, Options{Nlanes: 2})
	require.NoError(t, err)
	defer p2.Close()

	root2, err := p2.Root(64)
	require.NoError(t, err)
	require.Equal(t, oid.Offset(), root2.Offset())
}

func TestCreateRejectsUndersizedPool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.pool")
	_, err := Create(path, 1024, "x", Options{Nlanes: 1})
	require.Error(t, err)
}

func TestOpenRejectsBadSignature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pool")
	p, err := Create(path, 1<<20, "x", Options{Nlanes: 1})
	require.NoError(t, err)

	p.hdr.Signature[0] = 'X'
	require.NoError(t, p.Close())

	_, err = Open(path, Options{Nlanes: 1})
	require.Error(t, err)
	require.True(t, IsCode(err, ErrCodeCorrupted))
}
