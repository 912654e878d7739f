package brief

import (
	"bytes"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{3,}`)
	markdownLinkRe   = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
)

// Page is a product page reduced to what a copywriter needs.
type Page struct {
	Title       string
	Description string
	Markdown    string
}

// converter turns product page HTML into markdown.
type converter struct {
	md *md.Converter
}

func newConverter() *converter {
	c := md.NewConverter("", true, nil)
	c.Use(plugin.GitHubFlavored())
	return &converter{md: c}
}

// Convert extracts the title, meta description and main content of a page.
func (c *converter) Convert(content []byte) (*Page, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		markdown, convErr := c.md.ConvertString(basicHTMLCleanup(string(content)))
		if convErr != nil {
			return nil, convErr
		}
		return &Page{Markdown: cleanMarkdown(markdown)}, nil
	}

	page := &Page{
		Title:       extractTitle(doc),
		Description: extractDescription(doc),
	}

	markdown, err := c.md.ConvertString(mainContent(doc))
	if err != nil {
		return nil, err
	}
	page.Markdown = cleanMarkdown(markdown)

	if page.Title == "" {
		page.Title = markdownTitle(page.Markdown)
	}
	return page, nil
}

func extractTitle(doc *html.Node) string {
	if n := findElement(doc, func(n *html.Node) bool {
		return n.Data == "meta" && attr(n, "property") == "og:title"
	}); n != nil {
		if v := strings.TrimSpace(attr(n, "content")); v != "" {
			return v
		}
	}
	if n := findElement(doc, func(n *html.Node) bool { return n.Data == "title" }); n != nil && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	return ""
}

func extractDescription(doc *html.Node) string {
	n := findElement(doc, func(n *html.Node) bool {
		if n.Data != "meta" {
			return false
		}
		return attr(n, "name") == "description" || attr(n, "property") == "og:description"
	})
	if n == nil {
		return ""
	}
	return strings.TrimSpace(attr(n, "content"))
}

// mainContent returns the HTML of the page's main area, or of the body with
// navigation and boilerplate removed.
func mainContent(doc *html.Node) string {
	for _, match := range []func(*html.Node) bool{
		func(n *html.Node) bool { return n.Data == "main" },
		func(n *html.Node) bool { return n.Data == "article" },
		func(n *html.Node) bool { return attr(n, "role") == "main" },
	} {
		if n := findElement(doc, match); n != nil {
			removeElements(n, []string{"script", "style", "noscript", "form", "button"})
			return renderNode(n)
		}
	}

	removeElements(doc, []string{
		"nav", "header", "footer", "aside", "script", "style", "noscript",
		"iframe", "object", "embed", "form", "input", "button",
	})
	removeByClass(doc, []string{
		"nav", "navbar", "navigation", "sidebar", "menu", "footer", "header",
		"ad", "advertisement", "social", "share", "comments", "related",
		"breadcrumb", "cookie", "newsletter", "reviews",
	})

	if body := findElement(doc, func(n *html.Node) bool { return n.Data == "body" }); body != nil {
		return renderNode(body)
	}
	return renderNode(doc)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// findElement returns the first element, depth first, for which match is true.
func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func removeMatching(n *html.Node, match func(*html.Node) bool) {
	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && match(node) {
			toRemove = append(toRemove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func removeElements(n *html.Node, tags []string) {
	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[tag] = true
	}
	removeMatching(n, func(node *html.Node) bool { return tagSet[node.Data] })
}

func removeByClass(n *html.Node, classes []string) {
	classSet := make(map[string]bool, len(classes))
	for _, class := range classes {
		classSet[class] = true
	}
	removeMatching(n, func(node *html.Node) bool {
		for _, c := range strings.Fields(strings.ToLower(attr(node, "class"))) {
			if classSet[c] {
				return true
			}
		}
		return false
	})
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

func basicHTMLCleanup(content string) string {
	content = scriptRe.ReplaceAllString(content, "")
	return styleRe.ReplaceAllString(content, "")
}

// cleanMarkdown drops link targets and image references, which only cost
// prompt tokens, and collapses blank runs.
func cleanMarkdown(content string) string {
	content = markdownLinkRe.ReplaceAllString(content, "$1")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
