package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtract_ArticleContent(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>T</title></head><body><article>Hello world</article></body></html>`
	doc, err := Extract(html, "https://x.test/p", nil)
	require.NoError(t, err)

	require.Equal(t, "T", doc.Title)
	require.Equal(t, "Hello world", doc.Content)
	require.Equal(t, 2, doc.WordCount)
	require.Equal(t, 0, doc.ImageCount)
	require.Equal(t, 0, doc.LinkCount)
	require.Nil(t, doc.StructuredData)
}

func TestExtract_ContentSelectorPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "article wins over main",
			html: `<body><main>secondary</main><article>primary</article></body>`,
			want: "primary",
		},
		{
			name: "empty article falls through to main",
			html: `<body><article>   </article><main>fallback text</main></body>`,
			want: "fallback text",
		},
		{
			name: "content class",
			html: `<body><div class="content">classy</div></body>`,
			want: "classy",
		},
		{
			name: "entry content",
			html: `<body><div class="entry-content">entry</div></body>`,
			want: "entry",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			doc, err := Extract(tc.html, "https://example.com/", nil)
			require.NoError(t, err)
			require.Equal(t, tc.want, doc.Content)
		})
	}
}

func TestExtract_BodyFallbackStripsChrome(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<nav>menu</nav>
		<header>masthead</header>
		<script>var x = 1;</script>
		<style>.a{}</style>
		<p>visible body text</p>
		<footer>legal</footer>
	</body></html>`

	doc, err := Extract(html, "https://example.com/", nil)
	require.NoError(t, err)
	require.Equal(t, "visible body text", doc.Content)
	require.Equal(t, 3, doc.WordCount)
}

func TestExtract_ImageAndLinkTruncation(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("<body>")
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, `<img src="/img/%d.png">`, i)
	}
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, `<a href="/page/%d">l</a>`, i)
	}
	b.WriteString("</body>")

	doc, err := Extract(b.String(), "https://example.com/base/", nil)
	require.NoError(t, err)

	require.Equal(t, 15, doc.ImageCount)
	require.Equal(t, 25, doc.LinkCount)
	require.Len(t, doc.Images, 10)
	require.Len(t, doc.Links, 20)
	require.Equal(t, "https://example.com/img/0.png", doc.Images[0])
	require.Equal(t, "https://example.com/page/19", doc.Links[19])
}

func TestExtract_AnchorLinksSkippedButCounted(t *testing.T) {
	t.Parallel()

	html := `<body><a href="#top">top</a><a href="/next">next</a></body>`
	doc, err := Extract(html, "https://example.com/", nil)
	require.NoError(t, err)

	require.Equal(t, 2, doc.LinkCount)
	require.Equal(t, []string{"https://example.com/next"}, doc.Links)
}

func TestExtract_StructuredData(t *testing.T) {
	t.Parallel()

	html := `<body>
		<h1 class="headline">Big News</h1>
		<span class="tag"> go </span><span class="tag">web</span>
	</body>`
	selectors := map[string]string{
		"headline": ".headline",
		"tags":     ".tag",
		"missing":  ".nope",
	}

	doc, err := Extract(html, "https://example.com/", selectors)
	require.NoError(t, err)

	require.Equal(t, "Big News", doc.StructuredData["headline"])
	require.Equal(t, []string{"go", "web"}, doc.StructuredData["tags"])
	_, present := doc.StructuredData["missing"]
	require.False(t, present)
}

func TestExtract_StructuredDataAbsentWhenNothingMatches(t *testing.T) {
	t.Parallel()

	doc, err := Extract("<body><p>x</p></body>", "https://example.com/", map[string]string{"a": ".gone"})
	require.NoError(t, err)
	require.Nil(t, doc.StructuredData)
}

func TestExtract_MetaTags(t *testing.T) {
	t.Parallel()

	html := `<head>
		<meta name="description" content=" a fine page ">
		<meta name="keywords" content="go, scraping , ,web">
	</head><body></body>`

	doc, err := Extract(html, "https://example.com/", nil)
	require.NoError(t, err)
	require.Equal(t, "a fine page", doc.MetaDescription)
	require.Equal(t, []string{"go", "scraping", "web"}, doc.MetaKeywords)
}

func TestExtract_Deterministic(t *testing.T) {
	t.Parallel()

	html := `<html><head><title>Page</title></head><body>
		<article>Some article text here</article>
		<img src="a.png"><a href="b.html">b</a>
	</body></html>`
	selectors := map[string]string{"t": "title"}

	first, err := Extract(html, "https://x.test/dir/page", selectors)
	require.NoError(t, err)
	second, err := Extract(html, "https://x.test/dir/page", selectors)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestExtract_RelativeResolution(t *testing.T) {
	t.Parallel()

	html := `<body><img src="../img/pic.jpg"><a href="sub/page.html">p</a></body>`
	doc, err := Extract(html, "https://x.test/a/b/", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"https://x.test/a/img/pic.jpg"}, doc.Images)
	require.Equal(t, []string{"https://x.test/a/b/sub/page.html"}, doc.Links)
}

func TestLinks_ResolvesAndCaps(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString(`<html><body><a href="#frag">skip</a>`)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(&sb, `<a href="/p/%d">p</a>`, i)
	}
	sb.WriteString(`</body></html>`)

	links, err := Links(sb.String(), "https://x.test", 3)
	require.NoError(t, err)
	require.Equal(t, []string{"https://x.test/p/0", "https://x.test/p/1", "https://x.test/p/2"}, links)
}

func TestImages_ResolvesAndCaps(t *testing.T) {
	t.Parallel()

	html := `<html><body><img src="/a.png"><img src="https://cdn.test/b.jpg"><img src="/c.gif"></body></html>`
	images, err := Images(html, "https://x.test", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"https://x.test/a.png", "https://cdn.test/b.jpg"}, images)
}
