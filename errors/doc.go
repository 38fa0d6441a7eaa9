// Package errors provides the structured error taxonomy used by mapqueue.
//
// Every error carries a code and a category. Categories decide what a caller
// does with the error:
//
//   - Fatal: construction problems (missing collaborators, invalid config).
//     The run never starts.
//   - Recoverable: cancellation or timeout. Loops stop in an orderly way and
//     report partial results.
//   - Transient: a consumer race miss or a store hiccup. Race misses are
//     skipped; store failures may be retried.
//   - Internal: codec failures, double publication, handler failures.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeMissingCollaborator, "shared state is nil")
//
//	if errors.IsCanceled(err) {
//	    // partial run, report and exit cleanly
//	}
//
//	wrapped := errors.Wrap(ctx.Err(), "producer interrupted",
//	    errors.WithComponent("producer"))
//
// Errors marshal to JSON so they can be written into run reports.
package errors
