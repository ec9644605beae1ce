// Package batch holds per-item outcomes of bulk item operations.
package batch

// ItemStatus is the processing outcome of a single batch entry.
type ItemStatus string

// Batch entry status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of one entry in a batch. Position is the entry's index
// in the request, so entries without an ID can still be matched to their outcome.
type Result struct {
	position int
	id       string
	status   ItemStatus
	err      error
}

// NewOK creates a successful batch result.
func NewOK(position int, id string) Result {
	return Result{position: position, id: id, status: StatusOK}
}

// NewError creates a failed batch result.
func NewError(position int, id string, err error) Result {
	return Result{position: position, id: id, status: StatusError, err: err}
}

// Position returns the entry's index in the request.
func (r Result) Position() int { return r.position }

// ID returns the item identifier. Empty for rejected entries that never got one.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Counts returns succeeded and failed totals.
func Counts(results []Result) (succeeded, failed int) {
	for _, r := range results {
		if r.status == StatusOK {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
