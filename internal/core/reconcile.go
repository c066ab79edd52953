package core

import "sort"

// Reconcile merges a freshly fetched batch of synced records for period p
// into the existing store.
//
// Every manual record survives, as does every synced record dated outside
// p. Synced records inside p are replaced wholesale by freshSynced. A
// retained synced record whose id reappears in freshSynced is superseded by
// the fresh copy so ids stay unique. The result is ordered by date, newest
// first; records with equal dates keep their relative order (retained
// records before fresh ones). Synced records outside p are therefore only
// guaranteed to survive when their ids do not collide with the fresh batch.
//
// The inputs are not modified. Reconcile is total and idempotent: applying
// it twice with the same batch and period yields the same sequence.
func Reconcile(existing, freshSynced []Transaction, p Period) []Transaction {
	fresh := make(map[TransactionID]struct{}, len(freshSynced))
	for _, t := range freshSynced {
		fresh[t.ID] = struct{}{}
	}

	merged := make([]Transaction, 0, len(existing)+len(freshSynced))
	for _, t := range existing {
		if t.Origin == OriginManual {
			merged = append(merged, t)
			continue
		}
		if p.Contains(t.Date) {
			continue
		}
		if _, dup := fresh[t.ID]; dup {
			continue
		}
		merged = append(merged, t)
	}
	merged = append(merged, freshSynced...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date.After(merged[j].Date)
	})
	return merged
}
