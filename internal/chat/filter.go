package chat

// FilterSubagentItems derives the presentation copy of a canonical timeline.
//
// A sub-agent tool call is redundant as a top-level entry because it is
// already rendered nested under its owning Task tool call, so every item whose
// id appears in any tool call's SubagentTools list is dropped. If an id is
// (incorrectly) used both as a top-level item and as a sub-agent entry, the
// sub-agent attribution wins and the top-level entry is dropped.
//
// One linear pass collects the owned-id set, a second retains the survivors in
// their original relative order.
func FilterSubagentItems(items []ChatItem) []ChatItem {
	owned := make(map[string]struct{})
	for _, it := range items {
		if it.Tool == nil {
			continue
		}
		for _, sub := range it.Tool.SubagentTools {
			owned[sub.ID] = struct{}{}
		}
	}

	if len(owned) == 0 {
		out := make([]ChatItem, len(items))
		copy(out, items)
		return out
	}

	out := make([]ChatItem, 0, len(items))
	for _, it := range items {
		if _, ok := owned[it.ID]; ok {
			continue
		}
		out = append(out, it)
	}
	return out
}
