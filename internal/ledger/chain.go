package ledger

import "sort"

// activeTransactionIDs computes the currently un-reversed transactions for a
// document from its full transaction list.
//
// Each root (no original_transaction_id) starts a chain. Reversal rows are
// scanned in id order and appended to the chain whose last element matches
// their original_transaction_id; since a reversal always postdates its
// target, a single ordered pass resolves every chain even when reversals are
// interleaved across roots. A chain of odd length ends in an active
// transaction; even-length chains net to zero and are excluded.
func activeTransactionIDs(txs []Transaction) []int64 {
	sorted := make([]Transaction, len(txs))
	copy(sorted, txs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	type chain struct {
		ids []int64
	}
	var chains []*chain
	tail := make(map[int64]*chain, len(sorted))

	for _, t := range sorted {
		if t.OriginalTransactionID == nil {
			c := &chain{ids: []int64{t.ID}}
			chains = append(chains, c)
			tail[t.ID] = c
			continue
		}
		c, ok := tail[*t.OriginalTransactionID]
		if !ok {
			// Reversal of a transaction that is not a chain tail (already
			// reversed, or belongs to another document); skip it.
			continue
		}
		delete(tail, *t.OriginalTransactionID)
		c.ids = append(c.ids, t.ID)
		tail[t.ID] = c
	}

	var active []int64
	for _, c := range chains {
		if len(c.ids)%2 == 1 {
			active = append(active, c.ids[len(c.ids)-1])
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i] < active[j] })
	return active
}
