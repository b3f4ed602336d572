package pmemobj

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectAndPoolByPtrRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.pool")
	p, err := Create(path, 1<<20, "regtest", Options{Nlanes: 1})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	oid, err := p.Root(64)
	require.NoError(t, err)
	require.NotZero(t, oid.PoolUUIDLo)
	require.Equal(t, p.UUIDLo(), oid.PoolUUIDLo)

	ptr := Direct(oid)
	require.NotNil(t, ptr)
	require.Equal(t, p.ToPtr(oid.Off), ptr)

	found, foundOID, ok := PoolByPtr(ptr)
	require.True(t, ok)
	require.Same(t, p, found)
	require.Equal(t, oid, foundOID)

	byUUID, ok := PoolByUUID(p.UUIDLo())
	require.True(t, ok)
	require.Same(t, p, byUUID)
}

func TestMultiplePoolsCoexistInRegistry(t *testing.T) {
	path1 := filepath.Join(t.TempDir(), "a.pool")
	path2 := filepath.Join(t.TempDir(), "b.pool")

	p1, err := Create(path1, 1<<20, "a", Options{Nlanes: 1})
	require.NoError(t, err)
	t.Cleanup(func() { p1.Close() })
	p2, err := Create(path2, 1<<20, "b", Options{Nlanes: 1})
	require.NoError(t, err)
	t.Cleanup(func() { p2.Close() })

	require.NotEqual(t, p1.UUIDLo(), p2.UUIDLo())

	oid1, err := p1.Root(32)
	require.NoError(t, err)
	oid2, err := p2.Root(32)
	require.NoError(t, err)

	require.Equal(t, p1.ToPtr(oid1.Off), Direct(oid1))
	require.Equal(t, p2.ToPtr(oid2.Off), Direct(oid2))

	found1, _, ok := PoolByPtr(Direct(oid1))
	require.True(t, ok)
	require.Same(t, p1, found1)

	found2, _, ok := PoolByPtr(Direct(oid2))
	require.True(t, ok)
	require.Same(t, p2, found2)
}

func TestPoolByUUIDUnknownReturnsFalse(t *testing.T) {
	_, ok := PoolByUUID(0xdeadbeef)
	require.False(t, ok)
}

func TestClosedPoolIsUnregistered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.pool")
	p, err := Create(path, 1<<20, "closedtest", Options{Nlanes: 1})
	require.NoError(t, err)

	uuidLo := p.UUIDLo()
	require.NoError(t, p.Close())

	_, ok := PoolByUUID(uuidLo)
	require.False(t, ok)
}
