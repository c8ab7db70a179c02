package pagination

// Page describes an offset-based window over an append-only index bucket.
type Page struct {
	Limit  uint64 `form:"limit,default=10"`
	Offset uint64 `form:"offset"`
}

// Normalize clamps the limit to [1, max]. A zero max leaves the limit as-is.
func (p Page) Normalize(max uint64) Page {
	if p.Limit == 0 {
		p.Limit = 10
	}
	if max > 0 && p.Limit > max {
		p.Limit = max
	}
	return p
}

// Window resolves the half-open position range [start, end) against a bucket
// of count entries. An offset at or past count yields an empty window.
func (p Page) Window(count uint64) (start, end uint64) {
	if p.Offset >= count {
		return 0, 0
	}
	start = p.Offset
	end = p.Offset + p.Limit
	if end > count || end < p.Offset {
		end = count
	}
	return start, end
}
