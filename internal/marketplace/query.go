package marketplace

// Gallery wire contract. The filter-type codes and flags value are fixed by
// the remote service and must not be changed.
const (
	filterTypeExtensionName = 10
	filterTypePublisherName = 4

	// queryFlags requests version and asset metadata (514 = IncludeFiles |
	// IncludeLatestVersionOnly in gallery terms).
	queryFlags = 514
)

// Query describes one page of a gallery search.
type Query struct {
	// Text is the search term, matched against the extension name, or the
	// publisher name when ByPublisher is set.
	Text string

	// ByPublisher switches the filter from extension name to publisher name.
	ByPublisher bool

	// PageSize is the number of results per page. Default: 10.
	PageSize int

	// PageNumber is the 1-based page to fetch. Default: 1.
	PageNumber int
}

func (q Query) filterType() int {
	if q.ByPublisher {
		return filterTypePublisherName
	}
	return filterTypeExtensionName
}

// queryPayload is the protocol object POSTed to the extensionquery endpoint.
type queryPayload struct {
	Filters    []queryFilter `json:"filters"`
	AssetTypes []string      `json:"assetTypes"`
	Flags      int           `json:"flags"`
}

type queryFilter struct {
	Criteria   []queryCriterion `json:"criteria"`
	PageNumber int              `json:"pageNumber"`
	PageSize   int              `json:"pageSize"`
	SortBy     int              `json:"sortBy"`
	SortOrder  int              `json:"sortOrder"`
}

type queryCriterion struct {
	FilterType int    `json:"filterType"`
	Value      string `json:"value"`
}

// buildPayload constructs the wire payload for q, applying pagination
// defaults. Sort fields are fixed at 0 (relevance, default order).
func buildPayload(q Query) queryPayload {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	pageNumber := q.PageNumber
	if pageNumber <= 0 {
		pageNumber = 1
	}

	return queryPayload{
		Filters: []queryFilter{
			{
				Criteria: []queryCriterion{
					{FilterType: q.filterType(), Value: q.Text},
				},
				PageNumber: pageNumber,
				PageSize:   pageSize,
				SortBy:     0,
				SortOrder:  0,
			},
		},
		AssetTypes: []string{},
		Flags:      queryFlags,
	}
}
