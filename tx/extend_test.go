package tx_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arjenvos/pmemobj"
	"github.com/arjenvos/pmemobj/internal/list"
	"github.com/arjenvos/pmemobj/tx"
)

// TestExternalLogChainExtendsPastInitialCapacity stages enough list
// splices in one transaction that the external (redo) ulog's initial
// 576-byte record can't hold them all, forcing a real continuation
// record to be reserved from the heap mid-transaction rather than
// failing with ENOMEM.
func TestExternalLogChainExtendsPastInitialCapacity(t *testing.T) {
	p := openTestPool(t)
	w := tx.NewWorker()

	root, err := p.Root(16)
	require.NoError(t, err)
	head := root.Offset()

	const n = 40
	var oids []pmemobj.OID
	require.NoError(t, tx.Run(p, w, func(txn *tx.Tx) error {
		for i := 0; i < n; i++ {
			oid, e := txn.InsertNew(24, head)
			if e != nil {
				return e
			}
			oids = append(oids, oid)
		}
		return nil
	}))
	require.Len(t, oids, n)

	count := 0
	list.At(head, p).Foreach(func(off uint64) bool {
		count++
		return true
	})
	require.Equal(t, n, count)
}
