package models

import (
	"fmt"
	"sort"
)

// Product is one scraped search result row.
type Product struct {
	Website string  `json:"website"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Link    string  `json:"link"`
}

func (p Product) String() string {
	return fmt.Sprintf("Website: %s, Product: %s, Price: $%s, Link: %s", p.Website, p.Name, FormatPrice(p.Price), p.Link)
}

func (p Product) Validate() []string {
	var errors []string

	if p.Website == "" {
		errors = append(errors, "Website is required")
	}

	if p.Name == "" {
		errors = append(errors, "Name is required")
	}

	if p.Price < 0 {
		errors = append(errors, "Price must not be negative")
	}

	return errors
}

// FormatPrice renders a price with cents only when they are present.
func FormatPrice(price float64) string {
	if price == float64(int64(price)) {
		return fmt.Sprintf("%d", int64(price))
	}
	return fmt.Sprintf("%.2f", price)
}

// SortByPrice orders products by ascending price, keeping the scrape order
// for equal prices.
func SortByPrice(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Price < products[j].Price
	})
}
