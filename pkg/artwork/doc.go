// Package artwork defines the records and pages exchanged between the
// Art Institute of Chicago API client, the pagination controller and the
// selection set.
//
// A Record is identified solely by its ID. Field values may differ between
// two fetches of the same page when the upstream collection changes; nothing
// in this module tries to reconcile that.
package artwork
