package highlight

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyEmptyPhraseListReturnsTextUnchanged(t *testing.T) {
	text := "I like pizza and I want to eat it every day."

	require.Equal(t, text, Apply(text, nil))
	require.Equal(t, text, Apply(text, []string{}))
	require.Equal(t, text, Apply(text, []string{"", "   "}))
}

func TestApplyWrapsBoundaryDelimitedOccurrences(t *testing.T) {
	got := Apply("I like pizza.", []string{"pizza"})
	require.Equal(t, "I like <em>pizza</em>.", got)
}

func TestApplyWrapsMultiplePhrases(t *testing.T) {
	text := "I like pizza and I want to eat it every day."
	got := Apply(text, []string{"like pizza", "every day"})
	require.Equal(t, "I <em>like pizza</em> and I want to eat it <em>every day</em>.", got)
}

func TestApplyDoesNotWrapSubstringsInsideWords(t *testing.T) {
	got := Apply("The catalogue lists a cat.", []string{"cat"})
	require.Equal(t, "The catalogue lists a <em>cat</em>.", got)
}

func TestApplyIsCaseInsensitiveAndKeepsOriginalCasing(t *testing.T) {
	got := Apply("Pizza is great. I love PIZZA.", []string{"pizza"})
	require.Equal(t, "<em>Pizza</em> is great. I love <em>PIZZA</em>.", got)
}

func TestApplyLongestPhraseWinsOverlap(t *testing.T) {
	got := Apply("I really like pizza a lot.", []string{"pizza", "like pizza"})
	require.Equal(t, "I really <em>like pizza</em> a lot.", got)
}

func TestApplyDeduplicatesPhrases(t *testing.T) {
	got := Apply("I like pizza.", []string{"pizza", "Pizza", " pizza "})
	require.Equal(t, "I like <em>pizza</em>.", got)
}

func TestApplyIsIdempotent(t *testing.T) {
	phrases := []string{"like pizza", "every day"}
	text := "I like pizza and I want to eat it every day."

	once := Apply(text, phrases)
	twice := Apply(once, phrases)
	require.Equal(t, once, twice)
}

func TestApplyWrapsAllOccurrences(t *testing.T) {
	got := Apply("pizza, pizza and more pizza", []string{"pizza"})
	require.Equal(t, "<em>pizza</em>, <em>pizza</em> and more <em>pizza</em>", got)
}

func TestApplyPhraseWithRegexMetacharacters(t *testing.T) {
	got := Apply("Is it good (really good)?", []string{"(really good)"})
	require.Equal(t, "Is it good <em>(really good)</em>?", got)
}

func TestApplyPhraseAtStringEdges(t *testing.T) {
	require.Equal(t, "<em>pizza</em>", Apply("pizza", []string{"pizza"}))
	require.Equal(t, "<em>pizza</em> first", Apply("pizza first", []string{"pizza"}))
	require.Equal(t, "last <em>pizza</em>", Apply("last pizza", []string{"pizza"}))
}

func TestApplyMissingPhraseLeavesTextUnchanged(t *testing.T) {
	text := "I like pizza."
	require.Equal(t, text, Apply(text, []string{"burger"}))
}
