// Package sync runs the mirror aggregation pipeline.
//
// A run fetches every configured source, merges the records so that each
// plugin appears once (the most recently updated copy wins), prepends the
// synthetic status record and writes the catalog artifact:
//
//	FETCH -> MERGE -> AUGMENT -> SERIALIZE
//
// Failing sources never fail a run; they only shrink it. A run fails when
// the status record cannot be built or the artifact cannot be written, in
// which case Run returns an *Error naming the failed Stage and the previous
// artifact is left untouched.
//
// The coordinator subpackage schedules periodic runs for the serve command.
package sync
