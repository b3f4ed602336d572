package tx_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arjenvos/pmemobj"
	"github.com/arjenvos/pmemobj/tx"
)

func openTestPool(t *testing.T) *pmemobj.Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tx.pool")
	p, err := pmemobj.Create(path, 1<<20, "txtest", pmemobj.Options{Nlanes: 2})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestAllocCommitPersists(t *testing.T) {
	p := openTestPool(t)
	w := tx.NewWorker()

	var oid pmemobj.OID
	err := tx.Run(p, w, func(txn *tx.Tx) error {
		var e error
		oid, e = txn.Alloc(128)
		if e != nil {
			return e
		}
		return txn.Write(oid.Offset(), []byte("hello"))
	})
	require.NoError(t, err)
	require.False(t, oid.IsNull())

	got := (*[5]byte)(p.Direct(oid))[:]
	require.Equal(t, "hello", string(got))
}

func TestAbortRestoresPreImage(t *testing.T) {
	p := openTestPool(t)
	w := tx.NewWorker()

	var oid pmemobj.OID
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		var e error
		oid, e = txn.Alloc(64)
		if e != nil {
			return e
		}
		return txn.Write(oid.Offset(), []byte("original"))
	}))

	wantErr := errors.New("deliberate abort")
	err := tx.Run(p, w, func(txn *tx.Tx) error {
		if e := txn.Write(oid.Offset(), []byte("clobbered")); e != nil {
			return e
		}
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	got := (*[8]byte)(p.Direct(oid))[:]
	require.Equal(t, "original", string(got))
}

func TestFreeThenAllocReusesSpace(t *testing.T) {
	p := openTestPool(t)
	w := tx.NewWorker()

	var first pmemobj.OID
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		var e error
		first, e = txn.Alloc(256)
		return e
	}))
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		return txn.Free(first)
	}))
	var second pmemobj.OID
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		var e error
		second, e = txn.Alloc(256)
		return e
	}))
	require.Equal(t, first.Offset(), second.Offset())
}

func TestOnCommitRunsOnlyOnSuccess(t *testing.T) {
	p := openTestPool(t)
	w := tx.NewWorker()

	var committed, aborted bool
	tx.Run(p, w, func(txn *tx.Tx) error {
		txn.OnCommit(func() { committed = true })
		txn.OnAbort(func() { aborted = true })
		return nil
	})
	require.True(t, committed)
	require.False(t, aborted)

	committed, aborted = false, false
	tx.Run(p, w, func(txn *tx.Tx) error {
		txn.OnCommit(func() { committed = true })
		txn.OnAbort(func() { aborted = true })
		return errors.New("fail")
	})
	require.False(t, committed)
	require.True(t, aborted)
}
