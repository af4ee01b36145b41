package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maltedev/shop-compare/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProducts() []models.Product {
	return []models.Product{
		{Website: "eBay", Name: "iPhone 16 128GB", Price: 699, Link: "https://www.ebay.com/itm/1"},
		{Website: "Amazon", Name: "Apple iPhone 16", Price: 799.99, Link: "https://www.amazon.com/dp/B0"},
	}
}

func TestTextLog_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "products.log")

	log, err := NewTextLog(path)
	require.NoError(t, err)
	assert.Equal(t, path, log.Path())

	at := time.Date(2024, 9, 20, 10, 0, 0, 0, time.UTC)
	require.NoError(t, log.Append("iPhone 16", at, sampleProducts()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `# 2024-09-20T10:00:00Z search "iPhone 16": 2 products`, lines[0])
	assert.Equal(t, "Website: eBay, Product: iPhone 16 128GB, Price: $699, Link: https://www.ebay.com/itm/1", lines[1])
	assert.Equal(t, "Website: Amazon, Product: Apple iPhone 16, Price: $799.99, Link: https://www.amazon.com/dp/B0", lines[2])
}

func TestTextLog_NeverRewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.log")
	require.NoError(t, os.WriteFile(path, []byte("earlier run\n"), 0o644))

	log, err := NewTextLog(path)
	require.NoError(t, err)
	require.NoError(t, log.Append("q", time.Now(), sampleProducts()[:1]))
	require.NoError(t, log.Append("q", time.Now(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(data)
	assert.True(t, strings.HasPrefix(content, "earlier run\n"))
	assert.Equal(t, 2, strings.Count(content, "# "))
	assert.Equal(t, 1, strings.Count(content, "Website: eBay"))
}

func TestNewTextLog_RequiresPath(t *testing.T) {
	_, err := NewTextLog("")
	assert.Error(t, err)
}

func TestWriteHTML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.html")

	started := time.Date(2024, 9, 20, 10, 0, 0, 0, time.UTC)
	r := &models.RunReport{
		ID:         "run-1",
		Query:      "iPhone <16>",
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		Sites: []models.SiteResult{
			{Website: "Amazon", Products: sampleProducts()[1:], Screenshot: ScreenshotPath(dir, "Amazon"), Challenge: "cleared", ChallengeAttempts: 1},
			{Website: "eBay", Error: "search page did not load"},
		},
		Products: sampleProducts(),
		Passed:   true,
	}

	require.NoError(t, WriteHTML(path, r))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(data)

	assert.Contains(t, html, "iPhone &lt;16&gt;", "query is escaped")
	assert.Contains(t, html, `src="Amazon_Search.png"`, "screenshot is relative to the report")
	assert.Contains(t, html, "Challenge: cleared after 1 attempt(s)")
	assert.Contains(t, html, "search page did not load")
	assert.Contains(t, html, "$799.99")
	assert.Contains(t, html, "$699")
	assert.Less(t, strings.Index(html, "iPhone 16 128GB"), strings.Index(html, "Apple iPhone 16</td>"))
	assert.Contains(t, html, "42s")
}

func TestScreenshotPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("Reports", "Amazon_Search.png"), ScreenshotPath("Reports", "Amazon"))
	assert.Equal(t, filepath.Join("Reports", "eBay_Error.png"), ErrorScreenshotPath("Reports", "eBay"))
}
