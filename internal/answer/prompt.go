package answer

import (
	"fmt"
	"strings"

	"github.com/docquery/docquery/internal/history"
)

// NotFoundPhrase is the fixed reply the model is instructed to use when
// the retrieved passages hold no relevant information.
const NotFoundPhrase = "Not found in the documents."

// promptTemplate fixes the section order: instructions, retrieved
// passages, recent conversation, current question. The question is the
// final line so the model answers it directly.
const promptTemplate = `You are an expert assistant that answers questions based on document excerpts.

Rules:
- Rely only on the document excerpts below.
- If they hold no relevant information, reply exactly: "%s"
- Keep the conversation coherent: take the earlier exchanges into account.
- Be brief, precise and logical.

Document excerpts:
%s

Earlier conversation:
%s

Current question:
%s`

// buildPrompt renders the prompt. Passages are joined with a blank line;
// each turn renders as a User/Assistant pair. Empty sections stay in
// place so the model still sees the "no relevant information" case.
func buildPrompt(passages []string, turns []history.Turn, question string) string {
	var conversation strings.Builder
	for i, turn := range turns {
		if i > 0 {
			conversation.WriteByte('\n')
		}
		fmt.Fprintf(&conversation, "User: %s\nAssistant: %s", turn.Question, turn.Answer)
	}

	return fmt.Sprintf(promptTemplate,
		NotFoundPhrase,
		strings.Join(passages, "\n\n"),
		conversation.String(),
		question,
	)
}
