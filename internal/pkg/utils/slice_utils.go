package utils

// BatchStrings splits a slice of strings into batches of at most batchSize.
func BatchStrings(items []string, batchSize int) [][]string {
	if len(items) == 0 {
		return [][]string{}
	}
	if batchSize <= 0 {
		batchSize = len(items)
	}

	var batches [][]string
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}

// Dedup returns the input strings with duplicates removed, preserving the
// first-seen order.
func Dedup(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
