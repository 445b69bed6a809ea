// Package annotation holds the per-video frame annotation tables and the
// coalesced range fetch that fills them.
//
// Every frame of a video carries a status (invalid, loading, valid, failed).
// RequestRange scans a frame range in index order, claims the first
// contiguous run of fetchable frames by marking them loading, and issues a
// single backend call for that run. The loading status is the claim: a frame
// is never covered by two in-flight requests. Reset bumps a generation
// counter so completions that started before a job or dataset switch are
// dropped instead of being applied to the new tables.
package annotation
