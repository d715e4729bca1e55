package catalog

import "encoding/json"

// SearchResponse is one page of subject search results.
type SearchResponse struct {
	Docs []SearchDoc `json:"docs"`
}

// SearchDoc is one candidate reference within a search page. AuthorNames is
// optional on the wire.
type SearchDoc struct {
	Key         string   `json:"key"`
	AuthorNames []string `json:"author_name"`
}

// WorkDetail is the detail record for one work.
type WorkDetail struct {
	Title       string      `json:"title"`
	Description Description `json:"description"`
}

// Description normalizes the two shapes the catalog emits: a bare string,
// or an object whose "value" field holds the text. Any other shape decodes
// to absent rather than failing the record.
type Description struct {
	Text string
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Description) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.Text = s
		return nil
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		d.Text = obj.Value
		return nil
	}
	d.Text = ""
	return nil
}

// Ratings is the rating summary for one work.
type Ratings struct {
	Summary RatingsSummary `json:"summary"`
}

// RatingsSummary carries the catalog-computed aggregate. Average is nil when
// the catalog has no ratings for the work.
type RatingsSummary struct {
	Average *float64 `json:"average"`
}
