package common

import (
	"net/url"

	"github.com/tienda-labs/tienda/internal/store"
)

var genderRoots = []struct {
	Name   string
	Gender string
}{
	{Name: "All", Gender: ""},
	{Name: "Men", Gender: store.GenderMen},
	{Name: "Women", Gender: store.GenderWomen},
}

// BuildCategoryTree groups the categories under one node per gender. The
// node matching the current gender and category filter is marked active.
// Product counts are only shown under "All" since they are not split by
// gender.
func BuildCategoryTree(categories []store.Category, gender, category string) []TreeNode {
	result := make([]TreeNode, 0, len(genderRoots))
	for _, root := range genderRoots {
		node := TreeNode{
			Name:     root.Name,
			Path:     CatalogURL(root.Gender, ""),
			Active:   root.Gender == gender,
			Children: make([]TreeNode, 0, len(categories)),
		}
		for _, c := range categories {
			child := TreeNode{
				Name:   c.Name,
				Path:   CatalogURL(root.Gender, c.Slug),
				Active: node.Active && c.Slug == category,
			}
			if root.Gender == "" {
				child.Count = c.ProductCount
			}
			node.Children = append(node.Children, child)
		}
		result = append(result, node)
	}
	return result
}

// CatalogURL links to the catalog filtered by gender and category slug.
func CatalogURL(gender, category string) string {
	q := url.Values{}
	if gender != "" {
		q.Set("gender", gender)
	}
	if category != "" {
		q.Set("category", category)
	}
	if len(q) == 0 {
		return "/products"
	}
	return "/products?" + q.Encode()
}
