package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/shop-compare/internal/browser"
	"github.com/maltedev/shop-compare/internal/config"
	"github.com/maltedev/shop-compare/internal/pages"
	"github.com/maltedev/shop-compare/pkg/logger"
)

func main() {
	var (
		query    = flag.String("query", "", "Search query (defaults to SEARCH_QUERY)")
		headless = flag.Bool("headless", true, "Run browser in headless mode")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *query == "" {
		*query = cfg.Search.Query
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := browser.DefaultOptions()
	opts.Headless = *headless && cfg.Browser.Headless
	opts.Timeout = cfg.Browser.Timeout

	b, err := browser.New(opts, logger)
	if err != nil {
		logger.Error("failed to initialize browser", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	missing := 0
	for _, name := range cfg.Search.Sites {
		if ctx.Err() != nil {
			break
		}

		site, err := pages.Lookup(name)
		if err != nil {
			logger.Error("unknown site", "site", name)
			missing++
			continue
		}

		sess, err := pages.NewSession(b, site, logger)
		if err != nil {
			logger.Error("failed to open page", "site", site.Name, "error", err)
			missing++
			continue
		}

		if err := sess.Open(ctx); err != nil {
			logger.Error("failed to navigate", "site", site.Name, "error", err)
		} else if err := sess.Search(ctx, *query); err != nil {
			logger.Error("failed to search", "site", site.Name, "error", err)
		}

		fmt.Printf("\n%s\n", site.Name)
		for _, c := range sess.Probe(ctx) {
			switch {
			case c.Selector == "":
				fmt.Printf("  %-16s (not configured)\n", c.Role)
			case c.Err != nil:
				fmt.Printf("  %-16s %q: error %v\n", c.Role, c.Selector, c.Err)
				missing++
			default:
				fmt.Printf("  %-16s %q: %d\n", c.Role, c.Selector, c.Count)
				if c.Count == 0 && c.Role != "challenge_input" && c.Role != "challenge_image" {
					missing++
				}
			}
		}

		sess.Close()
	}

	if missing > 0 {
		os.Exit(1)
	}
}
