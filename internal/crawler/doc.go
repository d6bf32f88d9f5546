// Package crawler defines the core page model, the store and fetch contracts,
// the lease guard and the retry policy shared by the crawl workers and the
// ranker.
package crawler
