package enargas

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var datePattern = regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4})\b`)

// resultRow is one table row of the result container that can be exported.
type resultRow struct {
	// Index is the position of the row among all rows of the container
	Index int
	Date  time.Time
	Text  string
}

// hasDate reports whether text contains something shaped like dd/mm/yyyy.
func hasDate(text string) bool {
	return datePattern.MatchString(text)
}

// parseRows returns the rows of markup that carry an actionable control and
// a valid dd/mm/yyyy date. When a row shows several dates the latest one is
// used.
func parseRows(markup string) ([]resultRow, error) {
	nodes, err := parseMarkup(markup)
	if err != nil {
		return nil, fmt.Errorf("failed to parse result markup: %w", err)
	}

	var trs []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			trs = append(trs, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}

	var rows []resultRow
	for i, tr := range trs {
		if !hasAction(tr) {
			continue
		}
		text := nodeText(tr)
		date, ok := latestDate(text)
		if !ok {
			continue
		}
		rows = append(rows, resultRow{Index: i, Date: date, Text: text})
	}
	return rows, nil
}

// tableParts open the inner markup of a table element. Outside a table
// context the parser drops them along with their rows.
var tableParts = []string{"<tbody", "<thead", "<tfoot", "<tr", "<caption", "<colgroup"}

// parseMarkup parses the inner markup of the result container. When the
// container is itself a table its children are parsed in table context.
func parseMarkup(markup string) ([]*html.Node, error) {
	head := strings.ToLower(strings.TrimSpace(markup))
	for _, tag := range tableParts {
		if strings.HasPrefix(head, tag) {
			table := &html.Node{Type: html.ElementNode, Data: "table", DataAtom: atom.Table}
			return html.ParseFragment(strings.NewReader(markup), table)
		}
	}

	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	return []*html.Node{doc}, nil
}

// latestRow picks the most recent row. Ties keep the first one.
func latestRow(rows []resultRow) (resultRow, bool) {
	if len(rows) == 0 {
		return resultRow{}, false
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if r.Date.After(best.Date) {
			best = r
		}
	}
	return best, true
}

func latestDate(text string) (time.Time, bool) {
	var best time.Time
	found := false
	for _, m := range datePattern.FindAllString(text, -1) {
		d, err := time.Parse("02/01/2006", m)
		if err != nil {
			continue
		}
		if !found || d.After(best) {
			best = d
			found = true
		}
	}
	return best, found
}

func hasAction(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if isAction(c) || hasAction(c) {
			return true
		}
	}
	return false
}

func isAction(n *html.Node) bool {
	if _, ok := attr(n, "onclick"); ok {
		return true
	}
	switch n.DataAtom {
	case atom.A, atom.Button:
		return true
	case atom.Input:
		t, _ := attr(n, "type")
		switch strings.ToLower(t) {
		case "button", "submit", "image":
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
