// Package updater keeps the identity and bibliographic indexes current
// against the upstream change feed.
//
// Each index type moves through Idle → Running → {Completed | Aborted} → Idle.
// A run health-checks the upstream, claims the in-memory flag for its type,
// takes the cross-process index lock, and then processes the window
// [lastSyncTime − overlap, now) in two phases: updated records first, then
// deletions. Only a run where both phases succeed advances the persisted cursor,
// and it advances to the window end.
package updater
