package artwork

// DefaultPageSize is the number of records requested per page, both for the
// displayed table and for bulk selection.
const DefaultPageSize = 12

// Record is a single artwork row.
type Record struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	PlaceOfOrigin string `json:"place_of_origin"`
	ArtistDisplay string `json:"artist_display"`
	Inscriptions  string `json:"inscriptions"`
	DateStart     int    `json:"date_start"`
	DateEnd       int    `json:"date_end"`
}

// Page is one fetched slice of the collection.
type Page struct {
	// Index is the 1-based page number that produced this page.
	Index int

	// Size is the requested page size, not len(Records).
	Size int

	Records []Record

	// TotalRecords and TotalPages are the upstream totals known at fetch time.
	TotalRecords int
	TotalPages   int
}

// FirstIndex returns the zero-based offset of the first row on the page.
func (p Page) FirstIndex() int {
	if p.Index < 1 {
		return 0
	}
	return (p.Index - 1) * p.Size
}

// Len returns the number of records on the page.
func (p Page) Len() int {
	return len(p.Records)
}

// Find returns the record with the given id if it is on this page.
func (p Page) Find(id int64) (Record, bool) {
	for _, r := range p.Records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// TotalPages returns ceil(totalRecords / pageSize).
func TotalPages(totalRecords, pageSize int) int {
	if totalRecords <= 0 || pageSize <= 0 {
		return 0
	}
	return (totalRecords + pageSize - 1) / pageSize
}

// PageForOffset converts a zero-based row offset into a 1-based page index.
func PageForOffset(offset, pageSize int) int {
	return offset/pageSize + 1
}
