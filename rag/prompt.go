package rag

import (
	"fmt"
	"strings"

	"qnabot/types"
)

// NoInformationAnswer is returned when the knowledge base holds nothing relevant.
const NoInformationAnswer = "I don't have any relevant information in the knowledge base to answer this question."

// Prompt is a two-message chat instruction.
type Prompt struct {
	System string
	User   string
}

const baseInstructions = `You are a helpful assistant that answers questions about internal company documents.
Rules:
- Answer ONLY using the information in the provided context.
- If the context does not contain enough information to answer, say so clearly.
- Never invent facts, numbers, names or policies that are not in the context.
- Use bullet points when they make the answer easier to read.`

const silentInstructions = `
- Do NOT mention document names, sources or citations in your answer. Do not add a list of sources.`

const inlineInstructions = `
- After each claim, cite the supporting context block with its marker, for example [Source 1].
- Only cite markers that appear in the context. Do not add a separate list of sources.`

// PromptBuilder formats fragments and a question for one citation policy.
type PromptBuilder struct {
	policy types.CitationPolicy
}

func NewPromptBuilder(policy types.CitationPolicy) *PromptBuilder {
	if policy == "" {
		policy = types.CitationSilent
	}
	return &PromptBuilder{policy: policy}
}

// Build expects fragments in descending relevance order; that order defines
// the 1-based source markers.
func (b *PromptBuilder) Build(fragments []types.Fragment, question string) Prompt {
	if len(fragments) == 0 {
		return Prompt{
			System: baseInstructions,
			User: fmt.Sprintf("There is no context available for this question.\n"+
				"Reply with exactly: %q\n\nQuestion: %s", NoInformationAnswer, question),
		}
	}

	var ctx strings.Builder
	for i, f := range fragments {
		if i > 0 {
			ctx.WriteString("\n\n")
		}
		if b.policy == types.CitationInline {
			fmt.Fprintf(&ctx, "[Source %d] (%s)\n%s", i+1, f.Source(), f.Content)
		} else {
			fmt.Fprintf(&ctx, "Document: %s\n%s", f.Source(), f.Content)
		}
	}

	system := baseInstructions + silentInstructions
	if b.policy == types.CitationInline {
		system = baseInstructions + inlineInstructions
	}
	return Prompt{
		System: system,
		User:   fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", ctx.String(), question),
	}
}
