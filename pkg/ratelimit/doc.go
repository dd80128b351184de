// Package ratelimit tracks the Art Institute API request quota and gates
// outgoing requests.
//
// The artworks API throttles per client identity. Callers identify
// themselves with the AIC-User-Agent request header (see client.Config), and
// each response advertises what is left of the current window in two
// headers:
//
//	X-RateLimit-Remaining  requests left in the window
//	X-RateLimit-Reset      seconds until the window resets
//
// The reset header is not sent on every response; a missing one is read as
// a full window. Responses without X-RateLimit-Remaining (cached or error
// pages) leave the state untouched.
//
// The last known state lives in Redis under the artic:rate_limit: keys so
// several processes sharing one identity stay under the quota together. A
// Tracker without Redis parses headers for the metrics gauge only and never
// blocks.
package ratelimit
