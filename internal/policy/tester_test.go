package policy

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pageharvest/pageharvest/internal/fetch"
	"github.com/pageharvest/pageharvest/internal/scraper"
)

type fakeStrategy struct {
	resp scraper.FetchResponse
	err  error
	got  scraper.FetchRequest
}

func (f *fakeStrategy) Fetch(_ context.Context, req scraper.FetchRequest) (scraper.FetchResponse, error) {
	f.got = req
	return f.resp, f.err
}

func TestTester_ReturnsPreview(t *testing.T) {
	t.Parallel()

	strategy := &fakeStrategy{
		resp: scraper.FetchResponse{
			StatusCode: http.StatusOK,
			Body: []byte(`<html><head><title>Shop</title></head><body>
				<article>one two three</article>
				<span class="price">9.99</span>
			</body></html>`),
			Duration: 42 * time.Millisecond,
		},
	}
	registry := fetch.NewRegistry()
	registry.Register(scraper.MethodStatic, strategy)

	tester := NewTester(registry, 30*time.Second)
	report, err := tester.Test(context.Background(), scraper.SitePolicy{
		Name:             "shop",
		Domain:           "shop.test",
		BaseURL:          "https://shop.test/",
		DefaultSelectors: map[string]string{"price": ".price"},
		UserAgents:       []string{"shopbot/1.0"},
		PageLoadTimeout:  15 * time.Second,
	})
	require.NoError(t, err)

	require.Equal(t, "https://shop.test/", report.URL)
	require.Equal(t, http.StatusOK, report.StatusCode)
	require.Equal(t, "Shop", report.Title)
	require.Equal(t, 3, report.WordCount)
	require.Equal(t, []string{"price"}, report.StructuredKeys)

	require.Equal(t, "shopbot/1.0", strategy.got.UserAgent)
	require.Equal(t, 15*time.Second, strategy.got.Timeout)
}

func TestTester_FetchFailurePropagates(t *testing.T) {
	t.Parallel()

	strategy := &fakeStrategy{err: scraper.NewFetchError(scraper.FetchUnreachable, "https://down.test/", errors.New("refused"))}
	registry := fetch.NewRegistry()
	registry.Register(scraper.MethodStatic, strategy)

	tester := NewTester(registry, time.Second)
	_, err := tester.Test(context.Background(), scraper.SitePolicy{BaseURL: "https://down.test/"})
	require.Error(t, err)

	var fe *scraper.FetchError
	require.True(t, errors.As(err, &fe))
}

func TestTester_UnknownDefaultMethodFallsBackToStatic(t *testing.T) {
	t.Parallel()

	strategy := &fakeStrategy{resp: scraper.FetchResponse{StatusCode: 200, Body: []byte("<html></html>")}}
	registry := fetch.NewRegistry()
	registry.Register(scraper.MethodStatic, strategy)

	tester := NewTester(registry, time.Second)
	_, err := tester.Test(context.Background(), scraper.SitePolicy{BaseURL: "https://x.test/"})
	require.NoError(t, err)
}

func TestTester_ScrapeOneOff(t *testing.T) {
	t.Parallel()

	strategy := &fakeStrategy{resp: scraper.FetchResponse{
		StatusCode: 200,
		Body:       []byte(`<html><head><title>ad hoc</title></head><body><p>a b c</p></body></html>`),
	}}
	registry := fetch.NewRegistry()
	registry.Register(scraper.MethodStatic, strategy)

	tester := NewTester(registry, 7*time.Second)
	resp, doc, err := tester.Scrape(context.Background(), scraper.MethodStatic,
		scraper.FetchRequest{URL: "https://x.test/"}, map[string]string{"body": "p"})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "ad hoc", doc.Title)
	require.Equal(t, "a b c", doc.StructuredData["body"])
	// Zero request timeout picks up the tester default.
	require.Equal(t, 7*time.Second, strategy.got.Timeout)
}

func TestTester_ScrapeUnknownMethod(t *testing.T) {
	t.Parallel()

	tester := NewTester(fetch.NewRegistry(), time.Second)
	_, _, err := tester.Scrape(context.Background(), scraper.FetchMethod("teleport"),
		scraper.FetchRequest{URL: "https://x.test/"}, nil)
	require.Error(t, err)
}
