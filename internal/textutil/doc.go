// Package textutil provides the normalization primitives shared by the index
// writers and the enrichment resolver.
//
// The primary use cases are:
//   - Turning heading text into the exact-match lookup key (NormalizeHeading)
//   - Translating native authority ids into the external-map numbering scheme
//     (TranslateID, CheckDigit)
//   - Canonicalizing bibliographic record ids (NormalizeBibID)
//   - Unicode NFC normalization of record text (NFC)
//
// Every function is pure and safe for concurrent use.
package textutil
