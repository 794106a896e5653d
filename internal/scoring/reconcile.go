package scoring

// ReconcileKind says how a batch answer was matched back to its articles.
type ReconcileKind int

const (
	// Unrecoverable means nothing in the answer can be trusted; every
	// article is scored on its own.
	Unrecoverable ReconcileKind = iota
	// ByID means entries were matched through their declared ids. Articles
	// without a matching entry are gaps.
	ByID
	// Positional means entry i belongs to article i.
	Positional
)

func (k ReconcileKind) String() string {
	switch k {
	case ByID:
		return "by_id"
	case Positional:
		return "positional"
	default:
		return "unrecoverable"
	}
}

// Reconciliation is the outcome of matching a batch answer to its articles.
type Reconciliation struct {
	Kind ReconcileKind
	// Results is indexed by position in the batch. A nil entry is a gap.
	Results []*Result
}

// Missing returns the batch positions that have no result.
func (r Reconciliation) Missing() []int {
	var missing []int
	for i, res := range r.Results {
		if res == nil {
			missing = append(missing, i)
		}
	}
	return missing
}

// Reconcile matches decoded entries to a batch of n articles whose local ids
// are startID..startID+n-1.
//
// Ids are trusted only when every entry has an in-range id, no id repeats,
// and the entries cover the batch exactly. Otherwise, if the answer has
// exactly n entries they are mapped by position. Otherwise the recognised
// ids are used (first occurrence wins) and the rest of the batch is left as
// gaps. An answer with no entries, or with no usable entries and the wrong
// count, is Unrecoverable.
func Reconcile(results []Result, startID, n int) Reconciliation {
	if n <= 0 {
		return Reconciliation{Kind: ByID, Results: []*Result{}}
	}
	if len(results) == 0 {
		return Reconciliation{Kind: Unrecoverable}
	}

	byOffset := make([]*Result, n)
	recognised := 0
	trusted := true
	for i := range results {
		res := &results[i]
		if res.ID == nil {
			trusted = false
			continue
		}
		offset := *res.ID - startID
		if offset < 0 || offset >= n {
			trusted = false
			continue
		}
		if byOffset[offset] != nil {
			trusted = false
			continue
		}
		byOffset[offset] = res
		recognised++
	}

	if trusted && len(results) == n {
		return Reconciliation{Kind: ByID, Results: byOffset}
	}

	if len(results) == n {
		positional := make([]*Result, n)
		for i := range results {
			positional[i] = &results[i]
		}
		return Reconciliation{Kind: Positional, Results: positional}
	}

	if recognised > 0 {
		return Reconciliation{Kind: ByID, Results: byOffset}
	}
	return Reconciliation{Kind: Unrecoverable}
}
