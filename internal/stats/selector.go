package stats

import (
	"strings"

	"github.com/cipulse/cipulse-api/internal/models"
)

const tagRefPrefix = "refs/tags/"

// MatchesAny reports whether the run falls inside the build's tracked scope.
// Selectors combine with OR; an empty selector list matches nothing.
// knownTags is the repository's fetched tag set, used to disambiguate head
// refs that name a tag rather than a branch.
func MatchesAny(run models.WorkflowRunRecord, selectors []models.Selector, knownTags map[string]struct{}) bool {
	for _, sel := range selectors {
		if matchSelector(run, sel, knownTags) {
			return true
		}
	}
	return false
}

func matchSelector(run models.WorkflowRunRecord, sel models.Selector, knownTags map[string]struct{}) bool {
	pattern := strings.TrimSpace(sel.Pattern)
	if pattern == "" {
		return false
	}

	switch sel.Kind {
	case models.SelectorKindBranch:
		if isTagRef(run.HeadBranch, knownTags) {
			return false
		}
		return globMatch(pattern, run.HeadBranch)
	case models.SelectorKindTag:
		if !isTagRef(run.HeadBranch, knownTags) {
			return false
		}
		return globMatch(pattern, strings.TrimPrefix(run.HeadBranch, tagRefPrefix))
	case models.SelectorKindWorkflow:
		return globMatch(pattern, run.Name)
	}
	return false
}

// isTagRef treats a head ref as a tag only if it is a member of the known
// tag set or carries the tag-ref prefix; the ref alone does not reliably
// distinguish branches from tags.
func isTagRef(ref string, knownTags map[string]struct{}) bool {
	if strings.HasPrefix(ref, tagRefPrefix) {
		return true
	}
	_, ok := knownTags[ref]
	return ok
}

// globMatch matches s against pattern, where `*` matches any run of
// characters and all other characters match literally. Matching is
// case-sensitive and anchored at both ends.
func globMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return s == pattern
	}

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}

	return strings.HasSuffix(s, parts[len(parts)-1])
}
