package main

import (
	"math/rand/v2"
	"regexp"
)

var examples = map[string]string{
	"Write new sections for a readme": `cat README.md | parley "write a new section to this README documenting a pdf sharing feature"`,
	"Editorialize your video files":   `ls ~/vids | parley -f "summarize each of these titles, group them by decade" | glow`,
	"Ask a free model":                `parley -m mistral "what are the tradeoffs of SSE vs websockets?"`,
	"Keep the conversation going":     `parley -C "now show it as a table"`,
	"Work offline":                    `parley -a ollama -m llama3 "explain this stack trace" < panic.log`,
}

func randomExample() (string, string) {
	keys := make([]string, 0, len(examples))
	for k := range examples {
		keys = append(keys, k)
	}
	desc := keys[rand.IntN(len(keys))] //nolint:gosec
	return desc, examples[desc]
}

func cheapHighlighting(s styles, code string) string {
	code = regexp.
		MustCompile(`"([^"\\]|\\.)*"`).
		ReplaceAllStringFunc(code, func(x string) string {
			return s.Quote.Render(x)
		})
	code = regexp.
		MustCompile(`\|`).
		ReplaceAllStringFunc(code, func(x string) string {
			return s.Pipe.Render(x)
		})
	return code
}
