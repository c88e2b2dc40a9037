// Package window bounds how much of a conversation is replayed to a provider.
//
// A window keeps the first keep turns (the handshake and the opening
// exchange that establish the persona) and the last keep turns (the recent
// context), dropping the middle. The SQL storage drivers evaluate the same
// predicate inside the database so the full history is never loaded.
package window

// DefaultKeep is the number of turns retained at each end of a conversation.
const DefaultKeep = 2

// InWindow reports whether the turn at the 1-based rank survives windowing
// in a conversation of total turns.
func InWindow(rank, total, keep int) bool {
	keep = normalize(keep)
	return rank <= keep || rank > total-keep
}

// Window returns the first keep and last keep elements of turns, in their
// original order. Sequences of at most 2*keep elements are returned as is.
// turns must already be ordered by (created_at, id).
func Window[T any](turns []T, keep int) []T {
	keep = normalize(keep)
	if len(turns) <= 2*keep {
		return turns
	}

	out := make([]T, 0, 2*keep)
	for i, t := range turns {
		if InWindow(i+1, len(turns), keep) {
			out = append(out, t)
		}
	}
	return out
}

func normalize(keep int) int {
	if keep < 1 {
		return DefaultKeep
	}
	return keep
}
