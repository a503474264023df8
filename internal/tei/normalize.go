// Package tei turns GROBID TEI markup into heading-structured markdown.
package tei

import (
	"fmt"
	"strings"

	"paperpipe/internal/domain"
)

// Normalizer implements domain.Normalizer for TEI documents.
type Normalizer struct{}

var _ domain.Normalizer = Normalizer{}

// New returns a TEI normalizer.
func New() Normalizer { return Normalizer{} }

// Normalize renders the title, abstract and body sections of markup as
// markdown. Citation markers and footnotes are dropped before any text is
// read.
func (Normalizer) Normalize(markup []byte) (md string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("walk markup: %v", r)
		}
	}()

	root, err := parse(markup)
	if err != nil {
		return "", err
	}
	root.prune(isDiscarded)

	var parts []string
	if ts := root.find("titleStmt"); ts != nil {
		if t := ts.find("title"); t != nil {
			if title := cleanText(t.textContent()); title != "" {
				parts = append(parts, "# "+title+"\n")
			}
		}
	}

	if abstract := root.find("abstract"); abstract != nil {
		parts = append(parts, "## Abstract\n")
		for _, p := range abstract.findAll("p") {
			parts = append(parts, cleanText(p.textContent())+"\n")
		}
	}

	if body := root.find("body"); body != nil {
		for _, div := range body.childElements("div") {
			parts = append(parts, section(div)...)
		}
	}

	return strings.Join(parts, "\n"), nil
}

func isDiscarded(n *node) bool {
	switch n.name {
	case "ref":
		t, _ := n.attr("type")
		return t == "bibr"
	case "note":
		p, _ := n.attr("place")
		return p == "foot"
	}
	return false
}

func section(div *node) []string {
	var parts []string
	if head := div.find("head"); head != nil {
		label, ok := head.attr("n")
		if !ok {
			label = "1"
		}
		depth := strings.Count(label, ".") + 2
		parts = append(parts, "\n"+strings.Repeat("#", depth)+" "+cleanText(head.textContent())+"\n")
	}

	for _, el := range div.childElements("p", "formula", "figure") {
		switch el.name {
		case "p":
			parts = append(parts, cleanText(el.textContent())+"\n")
		case "formula":
			parts = append(parts, "$$\n"+cleanText(el.textContent())+"\n$$\n")
		case "figure":
			if table := el.find("table"); table != nil {
				parts = append(parts, tableGrid(table))
			} else if desc := el.find("figDesc"); desc != nil {
				parts = append(parts, "[Image: "+cleanText(desc.textContent())+"]\n")
			}
		}
	}
	return parts
}

// tableGrid renders rows as pipe-delimited lines with a separator after the
// first row.
func tableGrid(table *node) string {
	var lines []string
	for i, row := range table.findAll("row") {
		cells := row.findAll("cell")
		texts := make([]string, len(cells))
		for j, c := range cells {
			texts[j] = cleanText(c.textContent())
		}
		lines = append(lines, "| "+strings.Join(texts, " | ")+" |")
		if i == 0 {
			sep := make([]string, len(cells))
			for j := range sep {
				sep[j] = "---"
			}
			lines = append(lines, "|"+strings.Join(sep, "|")+"|")
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
