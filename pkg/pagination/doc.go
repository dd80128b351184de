// Package pagination drives page fetches for the artworks table.
//
// Two consumers share one PageFetcher:
//
//   - Controller tracks the displayed page. Every navigation takes a new
//     generation and cancels the fetch of the one before it, so a slow,
//     superseded response can never overwrite a newer page.
//   - Walker fetches pages 1, 2, 3, ... strictly in order until enough
//     records are collected. Bulk selection uses it to gather the first K
//     records of the collection with the display page size.
//
// Example usage:
//
//	ctrl := pagination.NewController(apiClient, pagination.DefaultConfig())
//	if err := ctrl.OnNavigationEvent(ctx, 24); err != nil { ... } // page 3
//
//	walker := pagination.NewWalker(apiClient, pagination.DefaultConfig())
//	records, pages, err := walker.FetchFirst(ctx, 25) // 3 pages, 25 records
package pagination
