package chunker

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// splitSections cuts markdown at every top-level heading. Each section keeps
// its heading line; text before the first heading is its own section.
func splitSections(md []byte) (sections []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse markdown sections: %v", r)
		}
	}()

	root := goldmark.DefaultParser().Parse(text.NewReader(md))

	starts := []int{0}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		start := lineStart(md, h.Lines().At(0).Start)
		if start > starts[len(starts)-1] {
			starts = append(starts, start)
		}
	}
	starts = append(starts, len(md))

	for i := 0; i < len(starts)-1; i++ {
		if sec := bytes.TrimSpace(md[starts[i]:starts[i+1]]); len(sec) > 0 {
			sections = append(sections, string(sec))
		}
	}
	return sections, nil
}

func lineStart(src []byte, pos int) int {
	if i := bytes.LastIndexByte(src[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}
