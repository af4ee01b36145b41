package pages

import (
	"fmt"
	"strings"

	"github.com/maltedev/shop-compare/internal/parser"
)

// Site describes where things live on a shop's pages.
type Site struct {
	Name         string
	BaseURL      string
	SearchBox    string
	SearchButton string
	Results      parser.Selectors
	Challenge    ChallengeSelectors
}

// ChallengeSelectors locate the text challenge. An empty Input means the site
// has no supported challenge.
type ChallengeSelectors struct {
	Input   string
	Image   string
	Submit  string
	Refresh string
}

func Amazon() Site {
	return Site{
		Name:         "Amazon",
		BaseURL:      "https://www.amazon.com",
		SearchBox:    "#twotabsearchtextbox",
		SearchButton: "#nav-search-submit-button",
		Results: parser.Selectors{
			Row:   "div.s-main-slot div.s-result-item",
			Name:  "h2 a span",
			Price: "span.a-price-whole",
			Link:  "h2 a",
		},
		Challenge: ChallengeSelectors{
			Input:   "#captchacharacters",
			Image:   "form[action*='validateCaptcha'] img",
			Submit:  "form[action*='validateCaptcha'] button[type='submit']",
			Refresh: "form[action*='validateCaptcha'] a[onclick*='refresh'], a:has-text('Try different image')",
		},
	}
}

func Ebay() Site {
	return Site{
		Name:         "eBay",
		BaseURL:      "https://www.ebay.com",
		SearchBox:    "#gh-ac",
		SearchButton: "#gh-btn",
		Results: parser.Selectors{
			Row:   "ul.srp-results li.s-item",
			Name:  "h3.s-item__title",
			Price: "span.s-item__price",
			Link:  "a.s-item__link",
		},
	}
}

// Lookup resolves a configured site name, case-insensitively.
func Lookup(name string) (Site, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "amazon":
		return Amazon(), nil
	case "ebay":
		return Ebay(), nil
	default:
		return Site{}, fmt.Errorf("unknown site: %q", name)
	}
}

// selectors lists every configured selector with its role, in page order.
func (s Site) selectors() [][2]string {
	return [][2]string{
		{"search_box", s.SearchBox},
		{"search_button", s.SearchButton},
		{"result_row", s.Results.Row},
		{"result_name", s.Results.Row + " " + s.Results.Name},
		{"result_price", s.Results.Row + " " + s.Results.Price},
		{"result_link", s.Results.Row + " " + s.Results.Link},
		{"challenge_input", s.Challenge.Input},
		{"challenge_image", s.Challenge.Image},
	}
}
