// Package progress provides progress reporting for long-running searches.
package progress

// Callback reports progress during long operations.
// Parameters:
//   - current: Number of iterations completed
//   - total: Iteration budget
//   - message: Human-readable description of the current phase
//
// A nil Callback is valid and will be safely ignored by the Call() helper.
type Callback func(current, total int, message string)

// Call safely invokes the callback if non-nil.
func Call(cb Callback, current, total int, message string) {
	if cb != nil {
		cb(current, total, message)
	}
}

// Update is a detailed progress update for a search run.
type Update struct {
	Phase   string         // e.g. "search", "merge"
	Worker  int            // worker index for root-parallel runs, 0 otherwise
	Current int            // iterations completed
	Total   int            // iteration budget
	Message string         // human-readable progress message
	Details map[string]any // metrics such as tree_size or mean_reward
}

// DetailedCallback receives detailed progress updates.
// A nil DetailedCallback is valid and will be safely ignored by CallDetailed().
type DetailedCallback func(update Update)

// CallDetailed safely invokes the detailed callback if non-nil.
func CallDetailed(cb DetailedCallback, update Update) {
	if cb != nil {
		cb(update)
	}
}

// Every reports whether a progress update is due after current iterations when
// reporting every interval iterations. The final iteration is always due.
func Every(current, total, interval int) bool {
	if interval <= 0 {
		return false
	}
	return current%interval == 0 || current == total
}
