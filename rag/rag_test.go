package rag

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qnabot/types"
)

type fakeIndex struct {
	matches []types.Match
	err     error
	gotK    int
}

func (f *fakeIndex) Query(_ context.Context, _, _ string, k int) ([]types.Match, error) {
	f.gotK = k
	return f.matches, f.err
}

func match(id, label string, distance float64) types.Match {
	return types.Match{
		ID:       id,
		Content:  "content of " + id,
		Metadata: types.ChunkMetadata{Filename: label},
		Distance: distance,
	}
}

func fragment(label string) types.Fragment {
	return types.Fragment{Content: "about " + label, Metadata: types.ChunkMetadata{Filename: label}, Relevance: 0.9}
}

func TestRelevance(t *testing.T) {
	assert.Equal(t, 1.0, Relevance(0))
	assert.Equal(t, 0.0, Relevance(1))
	assert.InDelta(t, 0.75, Relevance(0.25), 1e-9)
	assert.Equal(t, 0.0, Relevance(1.4))
	assert.Equal(t, 0.0, Relevance(math.NaN()))
}

func TestRetriever(t *testing.T) {
	ctx := context.Background()

	t.Run("sorted by relevance, stable on ties", func(t *testing.T) {
		idx := &fakeIndex{matches: []types.Match{
			match("a", "a.txt", 0.4),
			match("b", "b.txt", 0.1),
			match("c", "c.txt", 0.4),
		}}
		got := NewRetriever(idx, 3, 0).Retrieve(ctx, "q", "")
		require.Len(t, got, 3)
		assert.Equal(t, []string{"b.txt", "a.txt", "c.txt"}, []string{got[0].Source(), got[1].Source(), got[2].Source()})
		assert.InDelta(t, 0.9, got[0].Relevance, 1e-9)
		assert.Equal(t, 3, idx.gotK)
	})

	t.Run("threshold drops weak fragments", func(t *testing.T) {
		idx := &fakeIndex{matches: []types.Match{match("a", "a.txt", 0.2), match("b", "b.txt", 0.8)}}
		got := NewRetriever(idx, 5, 0.3).Retrieve(ctx, "q", "documents")
		require.Len(t, got, 1)
		assert.Equal(t, "a.txt", got[0].Source())
	})

	t.Run("index error is no knowledge", func(t *testing.T) {
		idx := &fakeIndex{err: errors.New("connection refused")}
		assert.Empty(t, NewRetriever(idx, 5, 0).Retrieve(ctx, "q", "documents"))
	})

	t.Run("undefined distance is dropped by the threshold", func(t *testing.T) {
		idx := &fakeIndex{matches: []types.Match{match("a", "a.txt", math.NaN())}}
		assert.Empty(t, NewRetriever(idx, 5, 0.3).Retrieve(ctx, "?!", "documents"))
	})

	t.Run("default k", func(t *testing.T) {
		idx := &fakeIndex{}
		NewRetriever(idx, 0, 0).Retrieve(ctx, "q", "documents")
		assert.Equal(t, DefaultTopK, idx.gotK)
	})
}

func TestPromptBuilder(t *testing.T) {
	fragments := []types.Fragment{
		{Content: "Annual leave is 20 days.", Metadata: types.ChunkMetadata{Filename: "x.txt", Title: "Leave Policy"}},
		{Content: "Sick leave is 10 days.", Metadata: types.ChunkMetadata{Filename: "sick.txt"}},
	}

	t.Run("silent", func(t *testing.T) {
		p := NewPromptBuilder(types.CitationSilent).Build(fragments, "How many days?")
		assert.Contains(t, p.User, "Document: Leave Policy\nAnnual leave is 20 days.")
		assert.Contains(t, p.User, "Document: sick.txt")
		assert.Contains(t, p.User, "Question: How many days?")
		assert.Less(t, strings.Index(p.User, "Leave Policy"), strings.Index(p.User, "sick.txt"))
		assert.Contains(t, p.System, "Answer ONLY using the information in the provided context")
		assert.Contains(t, p.System, "Do NOT mention document names")
		assert.NotContains(t, p.User, "[Source")
	})

	t.Run("inline", func(t *testing.T) {
		p := NewPromptBuilder(types.CitationInline).Build(fragments, "How many days?")
		assert.Contains(t, p.User, "[Source 1] (Leave Policy)")
		assert.Contains(t, p.User, "[Source 2] (sick.txt)")
		assert.Contains(t, p.System, "[Source 1]")
	})

	t.Run("empty context asks for canned answer", func(t *testing.T) {
		p := NewPromptBuilder(types.CitationSilent).Build(nil, "Who won?")
		assert.Contains(t, p.User, NoInformationAnswer)
		assert.Contains(t, p.User, "Question: Who won?")
	})
}

func TestPatternClassifier(t *testing.T) {
	c := NewPatternClassifier()
	negative := []string{
		NoInformationAnswer,
		"The context does not contain details about parking.",
		"I cannot find that in the documents.",
		"This is not mentioned in the context.",
		"There is insufficient information to answer.",
		"No relevant information was provided.",
		"I couldn't find any information about parking.",
		"I cannot answer this question from the available documents.",
		"There is no information about parking in the documents.",
	}
	for _, a := range negative {
		assert.True(t, c.NoInformation(a), a)
	}
	positive := []string{
		"Annual leave is 20 days.",
		"- Employees get 20 days\n- Unused days carry over",
		"Information security training is mandatory.",
		"Payslips are published on the HR portal. If you can't find yours, contact HR.",
		"If you cannot answer a security question, reset your password at the portal.",
		"Staff with no information clearance may not enter the server room.",
		"We could not determine the root cause, so the incident report lists three hypotheses.",
	}
	for _, a := range positive {
		assert.False(t, c.NoInformation(a), a)
	}

	custom := NewPatternClassifier(`^n/a$`)
	assert.True(t, custom.NoInformation("N/A"))
	assert.False(t, custom.NoInformation(NoInformationAnswer))
}

func TestPostProcessor_Silent(t *testing.T) {
	p := NewPostProcessor(types.CitationSilent, nil)
	fragments := []types.Fragment{fragment("a.txt"), fragment("b.txt"), fragment("a.txt")}

	t.Run("appends deduplicated sources", func(t *testing.T) {
		res := p.Finalize("Annual leave is 20 days [Source 1].", fragments)
		assert.Equal(t, types.StatusSuccess, res.Status)
		assert.Equal(t, []string{"a.txt", "b.txt"}, res.Sources)
		assert.Equal(t, "Annual leave is 20 days.\n\nSources: a.txt, b.txt", res.Answer)
	})

	t.Run("strips model generated source list", func(t *testing.T) {
		raw := "Annual leave is 20 days.\n\n**Summary of sources used:**\n- a.txt\n- b.txt"
		res := p.Finalize(raw, fragments)
		assert.Equal(t, "Annual leave is 20 days.\n\nSources: a.txt, b.txt", res.Answer)

		res = p.Finalize("Twenty days.\nSources: handbook.pdf", fragments)
		assert.Equal(t, "Twenty days.\n\nSources: a.txt, b.txt", res.Answer)
	})

	t.Run("leading source list keeps the answer", func(t *testing.T) {
		payroll := []types.Fragment{fragment("payroll.md")}
		res := p.Finalize("Sources: payroll.md\nPayslips are on the HR portal.", payroll)
		assert.Equal(t, "Payslips are on the HR portal.\n\nSources: payroll.md", res.Answer)

		res = p.Finalize("**Sources:**\n- payroll.md\n- handbook.pdf\n\nPayslips are on the HR portal.", payroll)
		assert.Equal(t, "Payslips are on the HR portal.\n\nSources: payroll.md", res.Answer)
	})

	t.Run("answer that is only a source list", func(t *testing.T) {
		res := p.Finalize("Sources:\n- handbook.pdf", fragments)
		assert.Equal(t, "- handbook.pdf\n\nSources: a.txt, b.txt", res.Answer)
		assert.Equal(t, 1, strings.Count(res.Answer, "Sources:"))
	})

	t.Run("advice to the reader keeps sources", func(t *testing.T) {
		payroll := []types.Fragment{fragment("payroll.md")}
		res := p.Finalize("Payslips are published on the HR portal. If you can't find yours, contact HR.", payroll)
		assert.Equal(t, []string{"payroll.md"}, res.Sources)
		assert.True(t, strings.HasSuffix(res.Answer, "\n\nSources: payroll.md"))
	})

	t.Run("no information drops sources", func(t *testing.T) {
		res := p.Finalize("The context does not contain information about parking.", fragments)
		assert.Empty(t, res.Sources)
		assert.NotNil(t, res.Sources)
		assert.Equal(t, "The context does not contain information about parking.", res.Answer)
	})
}

func TestPostProcessor_Inline(t *testing.T) {
	p := NewPostProcessor(types.CitationInline, nil)
	fragments := []types.Fragment{fragment("leave.txt"), fragment("sick.txt")}

	res := p.Finalize("Annual leave is 20 days [Source 1]. Carry-over is allowed [Source 1][Source 7].", fragments)
	assert.Equal(t, []string{"leave.txt"}, res.Sources)
	assert.True(t, strings.HasSuffix(res.Answer, "\n\nSources: leave.txt"))
	assert.Contains(t, res.Answer, "[Source 1]")

	res = p.Finalize("I do not know.", fragments)
	assert.Empty(t, res.Sources)
	assert.Equal(t, "I do not know.", res.Answer)
}
