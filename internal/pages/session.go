package pages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/maltedev/shop-compare/internal/browser"
	"github.com/maltedev/shop-compare/internal/models"
	"github.com/maltedev/shop-compare/internal/parser"
	"github.com/playwright-community/playwright-go"
)

var (
	ErrElementNotFound = errors.New("element not found")
	ErrStaleElement    = errors.New("element no longer attached to the page")
)

// Session is one site opened in its own browser tab. It also serves as the
// challenge boundary for the captcha solver.
type Session struct {
	site    Site
	browser *browser.Browser
	page    playwright.Page
	parser  parser.Parser
	logger  *slog.Logger
}

func NewSession(b *browser.Browser, site Site, logger *slog.Logger) (*Session, error) {
	p, err := parser.NewResultParser(site.Name, site.BaseURL, site.Results, logger)
	if err != nil {
		return nil, err
	}

	page, err := b.NewPage()
	if err != nil {
		return nil, err
	}

	return &Session{
		site:    site,
		browser: b,
		page:    page,
		parser:  p,
		logger:  logger.With("component", "page", "site", site.Name),
	}, nil
}

func (s *Session) Name() string {
	return s.site.Name
}

func (s *Session) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Info("navigating", "url", s.site.BaseURL)
	return s.browser.NavigateWithRetry(s.page, s.site.BaseURL, 3)
}

func (s *Session) Search(ctx context.Context, query string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	box, err := s.find(s.site.SearchBox)
	if err != nil {
		return err
	}
	if err := box.Fill(query); err != nil {
		return classify(fmt.Errorf("failed to type query: %w", err))
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	button, err := s.find(s.site.SearchButton)
	if err != nil {
		return err
	}
	if err := button.Click(); err != nil {
		return classify(fmt.Errorf("failed to submit search: %w", err))
	}

	if err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("search page did not load: %w", err)
	}

	s.logger.Info("searched", "query", query)
	return nil
}

// Results parses the first limit result rows of the current page.
func (s *Session) Results(ctx context.Context, limit int) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.page.Locator(s.site.Results.Row).First().WaitFor(playwright.LocatorWaitForOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		s.logger.Warn("no result rows appeared", "error", err)
	}

	html, err := s.page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	products, err := s.parser.ParseResults(html, limit)
	if err != nil {
		return nil, err
	}

	s.logger.Info("scraped results", "count", len(products))
	return products, nil
}

func (s *Session) Screenshot(path string) error {
	return s.browser.Screenshot(s.page, path)
}

func (s *Session) Close() error {
	return s.page.Close()
}

func (s *Session) ChallengePresent(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if s.site.Challenge.Input == "" {
		return false, nil
	}

	count, err := s.page.Locator(s.site.Challenge.Input).Count()
	if err != nil {
		return false, classify(fmt.Errorf("failed to look for challenge: %w", err))
	}
	return count > 0, nil
}

func (s *Session) ChallengeImageURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, err := s.find(s.site.Challenge.Image)
	if err != nil {
		return "", err
	}

	src, err := img.GetAttribute("src")
	if err != nil {
		return "", classify(fmt.Errorf("failed to read challenge image source: %w", err))
	}
	if strings.TrimSpace(src) == "" {
		return "", fmt.Errorf("%w: challenge image has no source", ErrElementNotFound)
	}

	base, err := url.Parse(s.page.URL())
	if err != nil {
		return src, nil
	}
	ref, err := url.Parse(src)
	if err != nil {
		return src, nil
	}
	return base.ResolveReference(ref).String(), nil
}

func (s *Session) SubmitResponse(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	input, err := s.find(s.site.Challenge.Input)
	if err != nil {
		return err
	}
	if err := input.Fill(text); err != nil {
		return classify(fmt.Errorf("failed to type challenge response: %w", err))
	}

	if submit, err := s.find(s.site.Challenge.Submit); err == nil {
		err = submit.Click()
		if err != nil {
			return classify(fmt.Errorf("failed to submit challenge response: %w", err))
		}
	} else if err := input.Press("Enter"); err != nil {
		return classify(fmt.Errorf("failed to submit challenge response: %w", err))
	}

	if err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateDomcontentloaded,
	}); err != nil {
		s.logger.Debug("page did not settle after submission", "error", err)
	}
	return nil
}

// RefreshChallenge asks for a new image, falling back to a page reload when
// the site offers no refresh control.
func (s *Session) RefreshChallenge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if refresh, err := s.find(s.site.Challenge.Refresh); err == nil {
		if err := refresh.Click(); err == nil {
			s.logger.Debug("challenge refreshed")
			return nil
		}
	}

	if _, err := s.page.Reload(playwright.PageReloadOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("failed to reload page: %w", err)
	}
	s.logger.Debug("page reloaded for a new challenge")
	return nil
}

func (s *Session) find(selector string) (playwright.Locator, error) {
	if selector == "" {
		return nil, fmt.Errorf("%w: no selector configured", ErrElementNotFound)
	}

	loc := s.page.Locator(selector).First()
	count, err := loc.Count()
	if err != nil {
		return nil, classify(fmt.Errorf("failed to look up %s: %w", selector, err))
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return loc, nil
}

// classify tags driver errors that mean the page changed under us.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not attached") || strings.Contains(msg, "detached") {
		return fmt.Errorf("%w: %v", ErrStaleElement, err)
	}
	return err
}

// SelectorCount is how often one configured selector matched on the page.
type SelectorCount struct {
	Role     string
	Selector string
	Count    int
	Err      error
}

// Probe counts matches for every selector configured for the site. It is
// used to spot selectors that no longer match after a site redesign.
func (s *Session) Probe(ctx context.Context) []SelectorCount {
	var out []SelectorCount
	for _, sel := range s.site.selectors() {
		c := SelectorCount{Role: sel[0], Selector: sel[1]}
		switch {
		case c.Selector == "":
		case ctx.Err() != nil:
			c.Err = ctx.Err()
		default:
			c.Count, c.Err = s.page.Locator(c.Selector).Count()
		}
		out = append(out, c)
	}
	return out
}
