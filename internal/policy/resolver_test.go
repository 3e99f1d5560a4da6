package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pageharvest/pageharvest/internal/scraper"
)

func TestResolve_NilPolicyPassesThrough(t *testing.T) {
	t.Parallel()

	job := scraper.Job{
		URL:       "https://x.test/p",
		Method:    scraper.MethodStatic,
		Headers:   map[string]string{"A": "1"},
		UserAgent: "mine",
		Timeout:   10 * time.Second,
	}
	res := Resolve(job, nil)

	require.Equal(t, scraper.MethodStatic, res.Method)
	require.Equal(t, job.Headers, res.Request.Headers)
	require.Equal(t, "mine", res.Request.UserAgent)
	require.Equal(t, 10*time.Second, res.Request.Timeout)
}

func TestResolve_PolicyFillsUnsetFields(t *testing.T) {
	t.Parallel()

	job := scraper.Job{URL: "https://x.test/p", Method: scraper.MethodStatic}
	pol := &scraper.SitePolicy{
		DefaultHeaders:   map[string]string{"Accept": "text/html"},
		DefaultSelectors: map[string]string{"price": ".price"},
		DefaultCookies:   map[string]string{"consent": "1"},
		UserAgents:       []string{"bot/1.0", "bot/2.0"},
	}

	res := Resolve(job, pol)

	require.Equal(t, pol.DefaultHeaders, res.Request.Headers)
	require.Equal(t, pol.DefaultSelectors, res.Selectors)
	require.Equal(t, pol.DefaultCookies, res.Request.Cookies)
	require.Equal(t, "bot/1.0", res.Request.UserAgent)
}

func TestResolve_JobFieldsWin(t *testing.T) {
	t.Parallel()

	job := scraper.Job{
		URL:       "https://x.test/p",
		Method:    scraper.MethodStatic,
		Headers:   map[string]string{"A": "job"},
		Selectors: map[string]string{"s": ".job"},
		Cookies:   map[string]string{"c": "job"},
		UserAgent: "job-agent",
	}
	pol := &scraper.SitePolicy{
		DefaultHeaders:   map[string]string{"A": "policy"},
		DefaultSelectors: map[string]string{"s": ".policy"},
		DefaultCookies:   map[string]string{"c": "policy"},
		UserAgents:       []string{"policy-agent"},
	}

	res := Resolve(job, pol)

	require.Equal(t, "job", res.Request.Headers["A"])
	require.Equal(t, ".job", res.Selectors["s"])
	require.Equal(t, "job", res.Request.Cookies["c"])
	require.Equal(t, "job-agent", res.Request.UserAgent)
}

func TestResolve_RequiresJSOverridesStaticMethod(t *testing.T) {
	t.Parallel()

	pol := &scraper.SitePolicy{
		RequiresJS:      true,
		DefaultMethod:   scraper.MethodChromedp,
		WaitForSelector: "#app",
		PageLoadTimeout: 20 * time.Second,
	}

	res := Resolve(scraper.Job{URL: "https://x.test", Method: scraper.MethodStatic}, pol)
	require.Equal(t, scraper.MethodChromedp, res.Method)
	require.Equal(t, "#app", res.Request.WaitForSelector)
	require.Equal(t, 20*time.Second, res.Request.Timeout)

	// An explicit browser method on the job is left alone.
	res = Resolve(scraper.Job{URL: "https://x.test", Method: scraper.MethodRod}, pol)
	require.Equal(t, scraper.MethodRod, res.Method)
}

func TestPolitenessOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, Politeness{}, PolitenessOf(nil))
	p := PolitenessOf(&scraper.SitePolicy{RateLimitDelay: 2 * time.Second, MaxConcurrent: 3})
	require.Equal(t, 2*time.Second, p.Delay)
	require.Equal(t, 3, p.MaxConcurrent)
}
