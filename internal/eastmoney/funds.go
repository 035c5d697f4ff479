package eastmoney

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/trogers1052/fund-metrics/internal/models"
)

// ListTopFunds returns the first n funds of the ranking table on the list page
func (c *Client) ListTopFunds(ctx context.Context, n int) ([]models.Fund, error) {
	raw, contentType, err := c.get(ctx, c.listURL, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fund list: %w", err)
	}
	body, err := toUTF8(raw, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fund list: %w", err)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse fund list: %w", err)
	}

	table := findElement(doc, func(n *html.Node) bool {
		return n.Data == "table" && attr(n, "id") == "oTable"
	})
	if table == nil {
		return nil, fmt.Errorf("fund list table not found")
	}
	tbody := findElement(table, func(n *html.Node) bool { return n.Data == "tbody" })
	if tbody == nil {
		return nil, fmt.Errorf("fund list table has no body")
	}

	var funds []models.Fund
	for tr := tbody.FirstChild; tr != nil && len(funds) < n; tr = tr.NextSibling {
		if tr.Type != html.ElementNode || tr.Data != "tr" {
			continue
		}

		codeCell := findElement(tr, func(n *html.Node) bool { return n.Data == "td" && hasClass(n, "bzdm") })
		nameCell := findElement(tr, func(n *html.Node) bool { return n.Data == "td" && hasClass(n, "tol") })
		if codeCell == nil || nameCell == nil {
			c.log.Warn().Int("row", len(funds)).Msg("skipping malformed fund list row")
			continue
		}
		link := findElement(nameCell, func(n *html.Node) bool { return n.Data == "a" })
		if link == nil {
			link = nameCell
		}

		f := models.Fund{
			Code: strings.TrimSpace(text(codeCell)),
			Name: strings.TrimSpace(text(link)),
		}
		c.log.Info().Int("rank", len(funds)).Str("code", f.Code).Str("name", f.Name).Msg("listed fund")
		funds = append(funds, f)
	}
	return funds, nil
}

// findElement returns the first element below root (depth first) matching fn
func findElement(root *html.Node, fn func(*html.Node) bool) *html.Node {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && fn(c) {
			return c
		}
		if found := findElement(c, fn); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
