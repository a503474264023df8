package domain

import "context"

// Converter turns a source PDF into structured markup using an external
// document-analysis service.
type Converter interface {
	Ping(ctx context.Context) error
	Convert(ctx context.Context, doc SourceDocument) ([]byte, error)
}

// Normalizer transforms structured markup into heading-structured markdown.
type Normalizer interface {
	Normalize(markup []byte) (string, error)
}

// Enricher validates and enriches normalized text with a language model.
type Enricher interface {
	Enrich(ctx context.Context, text string) (EnrichedContent, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}
