// Package batch fans many fetches out concurrently over one shared
// connection context and collects per-URL outcomes in input order.
//
// One Fetcher run creates a single pooled Session for the whole batch; all
// concurrent fetches share it and, when the fetch config carries one, a
// single rate limiter. An individual URL's failure never cancels its
// siblings: FetchAll reports every outcome inline, and FetchAllStrict
// still runs everything to completion before surfacing the first failure
// as a batch error.
package batch
