package tx_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arjenvos/pmemobj"
	"github.com/arjenvos/pmemobj/tx"
)

func openReallocTestPool(t *testing.T) *pmemobj.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "realloc.pool")
	p, err := pmemobj.Create(path, 4<<20, "txtest", pmemobj.Options{Nlanes: 2})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestReallocGrowsPreservesPrefixAndFillsTail(t *testing.T) {
	p := openReallocTestPool(t)
	w := tx.NewWorker()

	var small pmemobj.OID
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		var e error
		small, e = txn.Alloc(64)
		if e != nil {
			return e
		}
		return txn.Write(small.Offset(), []byte("grow-me!"))
	}))

	var big pmemobj.OID
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		var e error
		big, e = txn.Realloc(small, 655360)
		return e
	}))
	require.False(t, big.IsNull())

	got := (*[8]byte)(p.Direct(big))[:]
	require.Equal(t, "grow-me!", string(got))
}

func TestReallocShrinkTruncatesPrefix(t *testing.T) {
	p := openReallocTestPool(t)
	w := tx.NewWorker()

	var oid pmemobj.OID
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		var e error
		oid, e = txn.Alloc(128)
		if e != nil {
			return e
		}
		return txn.Write(oid.Offset(), []byte("0123456789"))
	}))

	var shrunk pmemobj.OID
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		var e error
		shrunk, e = txn.Realloc(oid, 4)
		return e
	}))

	got := (*[4]byte)(p.Direct(shrunk))[:]
	require.Equal(t, "0123", string(got))
}

func TestReallocToZeroFrees(t *testing.T) {
	p := openReallocTestPool(t)
	w := tx.NewWorker()

	var oid pmemobj.OID
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		var e error
		oid, e = txn.Alloc(32)
		return e
	}))

	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		got, e := txn.Realloc(oid, 0)
		if e != nil {
			return e
		}
		if !got.IsNull() {
			t.Fatalf("expected null OID from Realloc(oid, 0), got %+v", got)
		}
		return nil
	}))
}

func TestReallocOfNullBehavesLikeAlloc(t *testing.T) {
	p := openReallocTestPool(t)
	w := tx.NewWorker()

	var oid pmemobj.OID
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		var e error
		oid, e = txn.Realloc(pmemobj.Null, 48)
		return e
	}))
	require.False(t, oid.IsNull())
}
