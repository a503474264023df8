package enrich

import "strings"

const textPlaceholder = "{markdown_text}"

const promptTemplate = `
You are a specialist in processing academic papers. Your task is to validate, clean, and enrich the provided Markdown text, which was extracted from a PDF.

**Instructions:**

1.  **Validate and Clean:**
    - Read the entire Markdown text.
    - Correct obvious OCR errors, formatting issues and garbled text: fix broken words, remove stray artifacts, keep the Markdown formatting consistent.
    - Make sure the text reads logically.

2.  **Enrich with Metadata:**
    - **Summary:** Write a concise, academic-style summary of the whole document (around 150-200 words) covering the research question, methods, results and conclusions.
    - **Key Entities:** Extract a list of key entities: important technical terms, technologies, algorithms, key concepts or proper nouns relevant to the paper's topic.

3.  **Format the Output:**
    - Return a single, valid JSON object and nothing else.
    - The JSON object must have the following structure:
      {
        "cleaned_text": "...",
        "summary": "...",
        "entities": ["entity1", "entity2", "entity3", ...]
      }

**Input Markdown Text:**

{markdown_text}
`

// BuildPrompt inserts text verbatim into the enrichment instructions.
func BuildPrompt(text string) string {
	return strings.Replace(promptTemplate, textPlaceholder, text, 1)
}
