package rag

import (
	"regexp"
	"strconv"
	"strings"

	"qnabot/types"
)

var (
	sourcesHeader  = regexp.MustCompile(`(?i)^[ \t]*(?:[#*_]+[ \t]*)?(?:summary of sources used|sources?)(?:[*_]+)?[ \t]*:`)
	sourceListItem = regexp.MustCompile(`^[ \t]*(?:[-*•]|\d+[.)])[ \t]+`)
	sourceMarker   = regexp.MustCompile(`(?i)\[Source\s+(\d+)\]`)
	markerSpacing  = regexp.MustCompile(`[ \t]+([.,;:!?])`)
	repeatedBlanks = regexp.MustCompile(`[ \t]{2,}`)
)

// PostProcessor cleans the raw model text and attaches sources according to
// the citation policy.
type PostProcessor struct {
	policy     types.CitationPolicy
	classifier Classifier
}

func NewPostProcessor(policy types.CitationPolicy, classifier Classifier) *PostProcessor {
	if policy == "" {
		policy = types.CitationSilent
	}
	if classifier == nil {
		classifier = NewPatternClassifier()
	}
	return &PostProcessor{policy: policy, classifier: classifier}
}

// Finalize never fails. fragments must be in the order shown in the prompt.
func (p *PostProcessor) Finalize(raw string, fragments []types.Fragment) types.AnswerResult {
	answer := stripSourceLists(raw)
	if answer == "" {
		answer = dropSourceHeaders(raw)
	}

	var sources []string
	switch p.policy {
	case types.CitationInline:
		sources = citedSources(answer, fragments)
	default:
		answer = stripMarkers(answer)
		if !p.classifier.NoInformation(answer) {
			sources = allSources(fragments)
		}
	}

	if len(sources) > 0 {
		answer = strings.TrimSpace(answer + "\n\nSources: " + strings.Join(sources, ", "))
	}
	if sources == nil {
		sources = []string{}
	}
	return types.AnswerResult{Answer: answer, Status: types.StatusSuccess, Sources: sources}
}

// stripSourceLists removes source lists the model wrote itself. A list that
// follows answer text runs to the end; a list before any answer text is the
// header line plus the list items directly under it.
func stripSourceLists(text string) string {
	lines := strings.Split(text, "\n")
	var kept []string
	for i := 0; i < len(lines); i++ {
		if !sourcesHeader.MatchString(lines[i]) {
			kept = append(kept, lines[i])
			continue
		}
		if strings.TrimSpace(strings.Join(kept, "")) != "" {
			break
		}
		for i+1 < len(lines) && sourceListItem.MatchString(lines[i+1]) {
			i++
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// dropSourceHeaders keeps everything except the header lines themselves.
func dropSourceHeaders(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if !sourcesHeader.MatchString(line) {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func stripMarkers(text string) string {
	text = sourceMarker.ReplaceAllString(text, "")
	text = markerSpacing.ReplaceAllString(text, "$1")
	text = repeatedBlanks.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// citedSources maps [Source N] markers to the Nth fragment, ignoring markers
// that point outside the fragment list.
func citedSources(text string, fragments []types.Fragment) []string {
	var sources []string
	seen := map[string]bool{}
	for _, m := range sourceMarker.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(fragments) {
			continue
		}
		label := fragments[n-1].Source()
		if !seen[label] {
			seen[label] = true
			sources = append(sources, label)
		}
	}
	return sources
}

func allSources(fragments []types.Fragment) []string {
	var sources []string
	seen := map[string]bool{}
	for _, f := range fragments {
		label := f.Source()
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		sources = append(sources, label)
	}
	return sources
}
