// Package kvstore wraps an embedded badger database with the small set of
// operations the identity index needs: point and multi reads, batched writes,
// prefix scans and prefix drops.
package kvstore
