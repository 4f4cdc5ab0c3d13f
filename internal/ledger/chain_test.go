package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func tx(id int64, original *int64) Transaction {
	return Transaction{ID: id, DocumentID: 1, Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), CurrencyID: 1, OriginalTransactionID: original}
}

func ref(id int64) *int64 { return &id }

func TestActiveTransactionIDsEmpty(t *testing.T) {
	require.Empty(t, activeTransactionIDs(nil))
}

func TestActiveTransactionIDsChainParity(t *testing.T) {
	cases := []struct {
		name string
		txs  []Transaction
		want []int64
	}{
		{
			name: "single root is active",
			txs:  []Transaction{tx(1, nil)},
			want: []int64{1},
		},
		{
			name: "reversed pair nets out",
			txs:  []Transaction{tx(1, nil), tx(2, ref(1))},
			want: nil,
		},
		{
			name: "reversal of reversal is active again",
			txs:  []Transaction{tx(1, nil), tx(2, ref(1)), tx(3, ref(2))},
			want: []int64{3},
		},
		{
			name: "chain of four nets out",
			txs:  []Transaction{tx(1, nil), tx(2, ref(1)), tx(3, ref(2)), tx(4, ref(3))},
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, activeTransactionIDs(tc.txs))
		})
	}
}

func TestActiveTransactionIDsInterleavedChains(t *testing.T) {
	// Two roots whose reversals arrive interleaved by id: 1 and 2 are roots,
	// 3 reverses 1, 4 reverses 3, 5 reverses 2.
	txs := []Transaction{
		tx(1, nil),
		tx(2, nil),
		tx(3, ref(1)),
		tx(4, ref(3)),
		tx(5, ref(2)),
	}
	require.Equal(t, []int64{4}, activeTransactionIDs(txs))
}

func TestActiveTransactionIDsOrderIndependentInput(t *testing.T) {
	txs := []Transaction{
		tx(3, ref(1)),
		tx(1, nil),
		tx(2, nil),
	}
	require.Equal(t, []int64{2, 3}, activeTransactionIDs(txs))
}

func TestActiveTransactionIDsSkipsDoubleReversal(t *testing.T) {
	// Two rows both claiming to reverse transaction 1: only the first (lower
	// id) joins the chain, the stray second one is ignored.
	txs := []Transaction{
		tx(1, nil),
		tx(2, ref(1)),
		tx(3, ref(1)),
	}
	require.Empty(t, activeTransactionIDs(txs))
}
