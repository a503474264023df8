package tei

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paper = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
 <teiHeader>
  <fileDesc>
   <titleStmt><title level="a" type="main">Attention   Is
     All You Need</title></titleStmt>
  </fileDesc>
  <profileDesc>
   <abstract><div><p>We propose a <ref type="bibr" target="#b1">[1]</ref>new model.</p><p>It works.</p></div></abstract>
  </profileDesc>
 </teiHeader>
 <text>
  <body>
   <div><head n="1">Introduction</head><p>Recurrent models<ref type="bibr">[2]</ref> are slow.<note place="foot">A footnote.</note></p></div>
   <div><head n="3.2">Scaled Attention</head><formula>Q K^T</formula><p>Second
     para.</p>
     <figure><head>Table 1</head><figDesc>Results</figDesc><table><row><cell>Model</cell><cell>BLEU</cell></row><row><cell>Ours</cell><cell>28.4</cell></row></table></figure>
     <figure><figDesc>Architecture   overview</figDesc></figure>
   </div>
   <div><p>No heading here.</p></div>
  </body>
  <back><div><listBibl/></div></back>
 </text>
</TEI>`

func TestNormalizePaper(t *testing.T) {
	md, err := New().Normalize([]byte(paper))
	require.NoError(t, err)

	want := strings.Join([]string{
		"# Attention Is All You Need\n",
		"## Abstract\n",
		"We propose a new model.\n",
		"It works.\n",
		"\n## Introduction\n",
		"Recurrent models are slow.\n",
		"\n### Scaled Attention\n",
		"$$\nQ K^T\n$$\n",
		"Second para.\n",
		"| Model | BLEU |\n|---|---|\n| Ours | 28.4 |\n",
		"[Image: Architecture overview]\n",
		"No heading here.\n",
	}, "\n")
	assert.Equal(t, want, md)
}

func TestNormalizeDropsCitationsAndFootnotes(t *testing.T) {
	md, err := New().Normalize([]byte(paper))
	require.NoError(t, err)

	assert.NotContains(t, md, "[1]")
	assert.NotContains(t, md, "[2]")
	assert.NotContains(t, md, "A footnote")
}

func TestHeadingDepth(t *testing.T) {
	tests := []struct {
		head string
		want string
	}{
		{`<head>Plain</head>`, "\n## Plain\n"},
		{`<head n="2">Two</head>`, "\n## Two\n"},
		{`<head n="2.1">Two one</head>`, "\n### Two one\n"},
		{`<head n="2.1.3">Deep</head>`, "\n#### Deep\n"},
	}
	for _, tt := range tests {
		t.Run(tt.head, func(t *testing.T) {
			doc := `<TEI><text><body><div>` + tt.head + `</div></body></text></TEI>`
			md, err := New().Normalize([]byte(doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, md)
		})
	}
}

func TestNormalizeKeepsSiblingOrder(t *testing.T) {
	doc := `<TEI><text><body><div>
		<p>first</p><formula>x=1</formula><p>second</p><figure><figDesc>pic</figDesc></figure><p>third</p>
	</div></body></text></TEI>`
	md, err := New().Normalize([]byte(doc))
	require.NoError(t, err)

	first := strings.Index(md, "first")
	formula := strings.Index(md, "x=1")
	second := strings.Index(md, "second")
	pic := strings.Index(md, "[Image: pic]")
	third := strings.Index(md, "third")
	assert.True(t, first < formula && formula < second && second < pic && pic < third, md)
}

func TestNormalizeWithoutTitleOrAbstract(t *testing.T) {
	md, err := New().Normalize([]byte(`<TEI><teiHeader><fileDesc><titleStmt><title/></titleStmt></fileDesc></teiHeader><text><body><div><p>Only text.</p></div></body></text></TEI>`))
	require.NoError(t, err)
	assert.Equal(t, "Only text.\n", md)
}

func TestNormalizeEmptyDocument(t *testing.T) {
	md, err := New().Normalize([]byte(`<TEI/>`))
	require.NoError(t, err)
	assert.Empty(t, md)
}

func TestNormalizeDecodesDeclaredCharset(t *testing.T) {
	doc := []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><TEI><text><body><div><p>caf\xe9</p></div></body></text></TEI>")
	md, err := New().Normalize(doc)
	require.NoError(t, err)
	assert.Equal(t, "café\n", md)
}

func TestNormalizeCollapsesUnicodeSpaces(t *testing.T) {
	md, err := New().Normalize([]byte("<TEI><text><body><div><p>Deep\u00a0\u00a0learning\u2009works </p></div></body></text></TEI>"))
	require.NoError(t, err)
	assert.Equal(t, "Deep learning works\n", md)
}

func TestNormalizeErrors(t *testing.T) {
	tests := map[string]string{
		"empty":      "",
		"truncated":  "<TEI><text><body>",
		"mismatched": "<TEI><p></div></TEI>",
		"plain text": "GROBID crashed",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New().Normalize([]byte(doc))
			assert.Error(t, err)
		})
	}
}
