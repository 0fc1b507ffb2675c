// CLAUDE:SUMMARY Evaluates a Watch's ordered filter rules against a diff to decide whether a change passes.
package filter

import (
	"regexp"
	"strings"

	"github.com/devindudeman/kto/internal/store"
)

// Input carries what filter rules need to judge a detected change.
type Input struct {
	OldText string
	NewText string
	Diff    string
}

// Evaluate runs every rule in order and returns whether the change passes.
// An empty rule list always passes. Exclude* rules short-circuit to false
// on match; Include* rules are conjoined (every Include rule must match);
// numeric and addition/removal rules are evaluated independently and all
// must hold.
func Evaluate(rules []store.FilterRule, in Input) bool {
	if len(rules) == 0 {
		return true
	}
	for _, r := range rules {
		if !evalOne(r, in) {
			return false
		}
	}
	return true
}

func evalOne(r store.FilterRule, in Input) bool {
	switch r.Kind {
	case store.FilterIncludeContains:
		return strings.Contains(in.NewText, r.Pattern)
	case store.FilterExcludeContains:
		return !strings.Contains(in.NewText, r.Pattern)
	case store.FilterIncludeRegex:
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(in.NewText)
	case store.FilterExcludeRegex:
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return true
		}
		return !re.MatchString(in.NewText)
	case store.FilterMinChangedChars:
		return changedChars(in) >= r.N
	case store.FilterMaxChangedChars:
		return changedChars(in) <= r.N
	case store.FilterOnlyAdditions:
		return hasAdditions(in.Diff) && !hasRemovals(in.Diff)
	case store.FilterOnlyRemovals:
		return hasRemovals(in.Diff) && !hasAdditions(in.Diff)
	default:
		return true
	}
}

func changedChars(in Input) int {
	added, removed := 0, 0
	for _, line := range strings.Split(in.Diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			added += len(line) - 1
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			removed += len(line) - 1
		}
	}
	return added + removed
}

func hasAdditions(diffText string) bool {
	for _, line := range strings.Split(diffText, "\n") {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			return true
		}
	}
	return false
}

func hasRemovals(diffText string) bool {
	for _, line := range strings.Split(diffText, "\n") {
		if strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---") {
			return true
		}
	}
	return false
}
