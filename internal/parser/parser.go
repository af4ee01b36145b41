package parser

import (
	"github.com/maltedev/shop-compare/internal/models"
)

type Parser interface {
	ParseResults(html string, limit int) ([]models.Product, error)
}

// Selectors locate the fields of one search result row.
type Selectors struct {
	Row   string
	Name  string
	Price string
	Link  string
}
