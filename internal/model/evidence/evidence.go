package evidence

// Item is one normalized search result.
type Item struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Rank    int    `json:"rank"` // 1-based position assigned by the search provider
}

// chars is the budget cost of including the item in a digest.
func (i Item) chars() int {
	return len(i.Title) + len(i.Snippet)
}

// Digest is the condensed, budget-bounded evidence set handed to the
// answer generator.
type Digest struct {
	Items []Item `json:"items"`
	Chars int    `json:"chars"`
}

// Empty reports whether the digest carries no evidence.
func (d Digest) Empty() bool {
	return len(d.Items) == 0
}

// Condense reduces raw search results into a digest. Items are considered in
// rank order; duplicates by URL are dropped (first occurrence wins) and items
// are accepted greedily while the cumulative title+snippet length stays within
// budget. The first item that would overflow stops the scan; items are never
// split or truncated. The result is deterministic for a given input.
func Condense(items []Item, budget int) Digest {
	digest := Digest{}
	if budget <= 0 {
		return digest
	}

	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.URL == "" {
			continue
		}
		if _, dup := seen[item.URL]; dup {
			continue
		}
		seen[item.URL] = struct{}{}

		if digest.Chars+item.chars() > budget {
			break
		}
		digest.Items = append(digest.Items, item)
		digest.Chars += item.chars()
	}
	return digest
}
