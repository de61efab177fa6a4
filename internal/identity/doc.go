// Package identity implements the identity index on top of kvstore.
//
// Four key families share one store:
//
//	id:{nativeId}             entry payload
//	heading:{normalized}      the same payload, byte for byte
//	extid:{translatedId}      external identifier map
//	bib:{canonicalBibId}      bibliographic record MARCXML
//
// Both authority families are always written together from a single
// EncodeEntry call so a lookup by id and a lookup by heading never disagree.
package identity
