package models

// GrammarCorrection is one grammar fix inside a feedback response.
type GrammarCorrection struct {
	Original    string `json:"original"`
	Corrected   string `json:"corrected"`
	Explanation string `json:"explanation"`
	Rule        string `json:"rule,omitempty"`
}

// VocabularySuggestion proposes a better or richer word choice.
type VocabularySuggestion struct {
	Word         string `json:"word"`
	Definition   string `json:"definition"`
	UsageExample string `json:"usageExample"`
	Level        Level  `json:"level"`
}

// PronunciationTip flags a word the learner may have mispronounced.
type PronunciationTip struct {
	Word            string  `json:"word"`
	Phonetic        string  `json:"phonetic,omitempty"`
	Tip             string  `json:"tip"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

// Feedback is the assembled learning feedback for one turn.
type Feedback struct {
	Text                  string                 `json:"text"`
	GrammarCorrections    []GrammarCorrection    `json:"grammarCorrections"`
	VocabularySuggestions []VocabularySuggestion `json:"vocabularySuggestions"`
	PronunciationTips     []PronunciationTip     `json:"pronunciationTips"`
	FollowUpQuestion      string                 `json:"followUpQuestion,omitempty"`
}
