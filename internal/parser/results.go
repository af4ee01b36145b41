package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/shop-compare/internal/models"
)

var (
	ErrFieldMissing = errors.New("result field missing")
	ErrInvalidPrice = errors.New("invalid price")
)

// ResultParser extracts products from a search results page of one site.
type ResultParser struct {
	website   string
	baseURL   *url.URL
	selectors Selectors
	logger    *slog.Logger
}

func NewResultParser(website, baseURL string, selectors Selectors, logger *slog.Logger) (*ResultParser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	return &ResultParser{
		website:   website,
		baseURL:   u,
		selectors: selectors,
		logger:    logger.With("component", "result_parser", "website", website),
	}, nil
}

// ParseResults inspects the first limit result rows. Rows with a missing
// field or an unreadable price are skipped.
func (p *ResultParser) ParseResults(html string, limit int) ([]models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	rows := doc.Find(p.selectors.Row)
	if limit > 0 && rows.Length() > limit {
		rows = rows.Slice(0, limit)
	}

	products := make([]models.Product, 0, rows.Length())
	rows.Each(func(i int, row *goquery.Selection) {
		product, err := p.parseRow(row)
		if err != nil {
			p.logger.Debug("skipping result row", "row", i, "error", err)
			return
		}
		products = append(products, product)
	})

	return products, nil
}

func (p *ResultParser) parseRow(row *goquery.Selection) (models.Product, error) {
	nameSel := row.Find(p.selectors.Name).First()
	priceSel := row.Find(p.selectors.Price).First()
	linkSel := row.Find(p.selectors.Link).First()

	if nameSel.Length() == 0 || priceSel.Length() == 0 || linkSel.Length() == 0 {
		return models.Product{}, ErrFieldMissing
	}

	price, err := ParsePrice(priceSel.Text())
	if err != nil {
		return models.Product{}, err
	}

	href, _ := linkSel.Attr("href")

	product := models.Product{
		Website: p.website,
		Name:    strings.TrimSpace(nameSel.Text()),
		Price:   price,
		Link:    p.resolve(href),
	}
	if problems := product.Validate(); len(problems) > 0 {
		return models.Product{}, fmt.Errorf("%w: %s", ErrFieldMissing, strings.Join(problems, "; "))
	}
	return product, nil
}

func (p *ResultParser) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return p.baseURL.ResolveReference(ref).String()
}

// ParsePrice reads prices such as "$1,299.00", "799." or "$20.00 to $35.00"
// (first amount wins).
func ParsePrice(text string) (float64, error) {
	cleaned := strings.NewReplacer(",", "", "$", "").Replace(text)
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrInvalidPrice)
	}

	price, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || price < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, text)
	}
	return price, nil
}
