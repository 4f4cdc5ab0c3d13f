package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// entryFingerprint hashes the identity tuple of an entry. Row ids and
// timestamps are excluded: two entries are the same posting iff account,
// type, both amounts, party and document attribution agree.
func entryFingerprint(e Entry) string {
	tuple := fmt.Sprintf("%d|%s|%d|%d|%s|%d|%d",
		e.AccountID, e.Type, e.Amount, e.AmountInCurrency, e.PartyType, e.PartyID, e.DocumentID)
	sum := sha256.Sum256([]byte(tuple))
	return hex.EncodeToString(sum[:])
}

// transactionFingerprint computes an order-independent fingerprint of a
// transaction: same date, same currency and the same multiset of entry
// tuples compare equal. Entry hashes are sorted so caller-side reordering of
// entries does not register as a change.
func transactionFingerprint(date time.Time, currencyID int64, entries []Entry) string {
	hashes := make([]string, 0, len(entries))
	for _, e := range entries {
		hashes = append(hashes, entryFingerprint(e))
	}
	sort.Strings(hashes)
	return fmt.Sprintf("%s|%d|%s", date.Format("2006-01-02"), currencyID, strings.Join(hashes, ","))
}
