package catalog

import (
	"net/url"

	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/ui/features/common"
)

// Filters are the normalised catalog query parameters.
type Filters struct {
	Category string
	Gender   string
	Search   string
	Sort     string
}

// SortOption is one entry of the sort selector.
type SortOption struct {
	Value string
	Label string
}

// Sorts lists the sort orders offered on the page.
var Sorts = []SortOption{
	{Value: store.SortNewest, Label: "Newest"},
	{Value: store.SortPopular, Label: "Most popular"},
	{Value: store.SortPriceAsc, Label: "Price: low to high"},
	{Value: store.SortPriceDesc, Label: "Price: high to low"},
	{Value: store.SortName, Label: "Name"},
}

// PageData holds what the listing shows.
type PageData struct {
	Products   []store.Product
	Menu       []common.TreeNode
	Filter     Filters
	Sorts      []SortOption
	Total      int
	Page       int
	Limit      int
	TotalPages int
	Query      url.Values // filters to carry over in pagination links
}
