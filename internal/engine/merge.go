package engine

import "github.com/abhishekshukla9956/chatclient/internal/model"

// merge folds the freshly polled server list together with the optimistic
// overlay into the visible thread. Precedence when the two disagree about a
// message's presence: shadow-deleted > confirmed-server-state > pending-local.
//
// Confirmed messages keep the server list's order, deduplicated by ID.
// Pending sends are appended after all confirmed messages in the order they
// were created; the server has not assigned them a position yet.
func merge(server []model.Message, pending []*model.PendingMessage, shadowed func(int64) bool) []model.ThreadEntry {
	out := make([]model.ThreadEntry, 0, len(server)+len(pending))
	seen := make(map[int64]struct{}, len(server))

	for i := range server {
		m := server[i]
		if shadowed != nil && shadowed(m.ID) {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, model.ThreadEntry{Msg: &m})
	}
	for _, p := range pending {
		out = append(out, model.ThreadEntry{Pending: p})
	}
	return out
}
