package filter

import (
	"testing"

	"github.com/devindudeman/kto/internal/store"
)

func TestEvaluateEmptyRulesAlwaysPasses(t *testing.T) {
	if !Evaluate(nil, Input{}) {
		t.Error("empty rule list should always pass")
	}
}

func TestExcludeContainsShortCircuits(t *testing.T) {
	rules := []store.FilterRule{
		{Kind: store.FilterExcludeContains, Pattern: "sold out"},
	}
	in := Input{NewText: "Item is sold out today"}
	if Evaluate(rules, in) {
		t.Error("should be excluded when pattern matches")
	}
}

func TestIncludeContainsRequiresMatch(t *testing.T) {
	rules := []store.FilterRule{
		{Kind: store.FilterIncludeContains, Pattern: "restock"},
	}
	if Evaluate(rules, Input{NewText: "nothing relevant"}) {
		t.Error("should fail without the include pattern present")
	}
	if !Evaluate(rules, Input{NewText: "item back in restock"}) {
		t.Error("should pass when include pattern present")
	}
}

func TestMinChangedCharsThreshold(t *testing.T) {
	rules := []store.FilterRule{
		{Kind: store.FilterMinChangedChars, N: 10},
	}
	small := Input{Diff: "+ab"}
	if Evaluate(rules, small) {
		t.Error("small diff should not pass a high MinChangedChars threshold")
	}
	big := Input{Diff: "+abcdefghijklmno"}
	if !Evaluate(rules, big) {
		t.Error("large diff should pass MinChangedChars threshold")
	}
}

func TestOnlyAdditionsRejectsRemovals(t *testing.T) {
	rules := []store.FilterRule{{Kind: store.FilterOnlyAdditions}}
	withRemoval := Input{Diff: "+new line\n-old line"}
	if Evaluate(rules, withRemoval) {
		t.Error("a diff containing a removal should fail OnlyAdditions")
	}
	onlyAdd := Input{Diff: "+new line"}
	if !Evaluate(rules, onlyAdd) {
		t.Error("a diff with only additions should pass OnlyAdditions")
	}
}

func TestOnlyAdditionsRequiresAtLeastOneAddition(t *testing.T) {
	rules := []store.FilterRule{{Kind: store.FilterOnlyAdditions}}
	noHunks := Input{Diff: "unchanged context line"}
	if Evaluate(rules, noHunks) {
		t.Error("a diff with no + hunks should fail OnlyAdditions, not pass by default")
	}
}

func TestOnlyRemovalsRejectsAdditionsAndRequiresARemoval(t *testing.T) {
	rules := []store.FilterRule{{Kind: store.FilterOnlyRemovals}}
	withAddition := Input{Diff: "-old line\n+new line"}
	if Evaluate(rules, withAddition) {
		t.Error("a diff containing an addition should fail OnlyRemovals")
	}
	noHunks := Input{Diff: "unchanged context line"}
	if Evaluate(rules, noHunks) {
		t.Error("a diff with no - hunks should fail OnlyRemovals, not pass by default")
	}
	onlyRemove := Input{Diff: "-old line"}
	if !Evaluate(rules, onlyRemove) {
		t.Error("a diff with only removals should pass OnlyRemovals")
	}
}

func TestRulesAreConjoined(t *testing.T) {
	rules := []store.FilterRule{
		{Kind: store.FilterIncludeContains, Pattern: "price"},
		{Kind: store.FilterExcludeContains, Pattern: "discontinued"},
	}
	if !Evaluate(rules, Input{NewText: "price: $10"}) {
		t.Error("should pass when include matches and exclude does not")
	}
	if Evaluate(rules, Input{NewText: "price: $10, discontinued"}) {
		t.Error("should fail when exclude pattern also matches")
	}
}
