package tx_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arjenvos/pmemobj"
	"github.com/arjenvos/pmemobj/internal/list"
	"github.com/arjenvos/pmemobj/tx"
)

func TestInsertNewPrependsToList(t *testing.T) {
	p := openTestPool(t)
	w := tx.NewWorker()

	root, err := p.Root(16)
	require.NoError(t, err)
	head := root.Offset()

	var first, second pmemobj.OID
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		var e error
		first, e = txn.InsertNew(32, head)
		return e
	}))
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		var e error
		second, e = txn.InsertNew(32, head)
		return e
	}))

	var offs []uint64
	list.At(head, p).Foreach(func(off uint64) bool {
		offs = append(offs, off)
		return true
	})
	require.Equal(t, []uint64{second.Offset(), first.Offset()}, offs)
}

func TestRemoveFromListUnlinksEntry(t *testing.T) {
	p := openTestPool(t)
	w := tx.NewWorker()

	root, err := p.Root(16)
	require.NoError(t, err)
	head := root.Offset()

	var first, second pmemobj.OID
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		var e error
		first, e = txn.InsertNew(32, head)
		return e
	}))
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		var e error
		second, e = txn.InsertNew(32, head)
		return e
	}))
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		return txn.RemoveFromList(head, first.Offset())
	}))

	var offs []uint64
	list.At(head, p).Foreach(func(off uint64) bool {
		offs = append(offs, off)
		return true
	})
	require.Equal(t, []uint64{second.Offset()}, offs)
}
