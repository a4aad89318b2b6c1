package retrieval

import "strings"

// grammarKeywordGroup maps marker words in an utterance to the grammar
// rule topics worth surfacing for them.
type grammarKeywordGroup struct {
	name     string
	keywords []string
	topics   []string
}

// grammarKeywordGroups is the fixed keyword table for grammar lookups.
var grammarKeywordGroups = []grammarKeywordGroup{
	{
		name:     "tense",
		keywords: []string{"was", "were", "have", "has", "had", "will", "did", "does", "go", "goes", "went", "gone"},
		topics:   []string{"present_simple", "present_continuous", "past_simple", "present_perfect", "past_perfect"},
	},
	{
		name:     "articles",
		keywords: []string{"a", "an", "the"},
		topics:   []string{"articles"},
	},
	{
		name:     "conditionals",
		keywords: []string{"if", "would", "could", "might"},
		topics:   []string{"conditionals_first", "conditionals_third"},
	},
	{
		name:     "comparatives",
		keywords: []string{"more", "less", "better", "worse", "than"},
		topics:   []string{"comparatives"},
	},
	{
		name:     "emphasis",
		keywords: []string{"never", "rarely", "seldom", "suggest", "recommend", "insist"},
		topics:   []string{"subjunctive", "inversion"},
	},
}

// vocabularyTopicKeywords maps utterance words to vocabulary topics.
// Order is fixed so detection is deterministic.
var vocabularyTopicKeywords = []struct {
	topic    string
	keywords []string
}{
	{"business", []string{"work", "job", "office", "meeting", "boss", "company"}},
	{"travel", []string{"trip", "travel", "fly", "hotel", "vacation", "visit"}},
	{"daily", []string{"eat", "sleep", "home", "family", "friend", "morning"}},
	{"academic", []string{"study", "learn", "book", "read", "write"}},
}

// difficultPatterns are substrings that commonly trip up non-native
// speakers; words containing them get pronunciation guides.
var difficultPatterns = []string{"th", "ough", "tion", "sion", "ight", "ble", "ness"}

// utteranceWords lowercases and tokenizes an utterance, stripping
// surrounding punctuation from each word.
func utteranceWords(utterance string) []string {
	fields := strings.Fields(strings.ToLower(utterance))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.Trim(f, ".,!?;:'\"()")
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// grammarTopics returns the material topics whose keyword groups match
// any word of the utterance.
func grammarTopics(words []string) []string {
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}

	var topics []string
	seen := make(map[string]bool)
	for _, group := range grammarKeywordGroups {
		matched := false
		for _, kw := range group.keywords {
			if wordSet[kw] {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for _, t := range group.topics {
			if !seen[t] {
				seen[t] = true
				topics = append(topics, t)
			}
		}
	}
	return topics
}

// vocabularyTopics returns the vocabulary topics whose keywords match
// any word of the utterance.
func vocabularyTopics(words []string) []string {
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}

	var topics []string
	for _, entry := range vocabularyTopicKeywords {
		for _, kw := range entry.keywords {
			if wordSet[kw] {
				topics = append(topics, entry.topic)
				break
			}
		}
	}
	return topics
}

// difficultWords returns the utterance words containing a difficult
// pronunciation pattern.
func difficultWords(words []string) []string {
	var out []string
	for _, w := range words {
		for _, pattern := range difficultPatterns {
			if strings.Contains(w, pattern) {
				out = append(out, w)
				break
			}
		}
	}
	return out
}
