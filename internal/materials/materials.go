// Package materials holds the default learning material sets used to
// seed an empty store.
package materials

import (
	"context"

	"github.com/rs/zerolog/log"

	"ai-practice-session-service/internal/models"
	"ai-practice-session-service/internal/store"
)

// DefaultGrammarRules returns the built-in grammar rules per level.
func DefaultGrammarRules() []models.GrammarRule {
	return []models.GrammarRule{
		// Beginner
		{
			Topic:   "present_simple",
			Level:   models.LevelBeginner,
			Content: "Use present simple for habits, routines, and general truths. Add -s/-es for he/she/it.",
			Examples: []string{
				"I work every day.",
				"She works at a hospital.",
				"The sun rises in the east.",
			},
			CommonMistakes: []string{
				"He work every day (missing -s)",
				"She don't like coffee (should be doesn't)",
			},
		},
		{
			Topic:   "present_continuous",
			Level:   models.LevelBeginner,
			Content: "Use present continuous for actions happening now or temporary situations. Form: am/is/are + verb-ing.",
			Examples: []string{
				"I am eating lunch right now.",
				"She is working from home this week.",
				"They are studying English.",
			},
			CommonMistakes: []string{
				"I eating now (missing am)",
				"She is work (missing -ing)",
			},
		},
		{
			Topic:   "past_simple",
			Level:   models.LevelBeginner,
			Content: "Use past simple for finished actions at a known time in the past. Regular verbs add -ed; irregular verbs change form.",
			Examples: []string{
				"I went to school yesterday.",
				"She watched a movie last night.",
				"They visited their grandparents on Sunday.",
			},
			CommonMistakes: []string{
				"I have went there yesterday (should be 'I went')",
				"She goed home (should be 'went')",
			},
		},
		{
			Topic:   "articles",
			Level:   models.LevelBeginner,
			Content: "Use 'a' before consonant sounds, 'an' before vowel sounds. Use 'the' for specific or known things.",
			Examples: []string{
				"I have a car.",
				"She ate an apple.",
				"The book on the table is mine.",
			},
			CommonMistakes: []string{
				"I have car (missing article)",
				"I saw a elephant (should be 'an')",
			},
		},

		// Intermediate
		{
			Topic:   "present_perfect",
			Level:   models.LevelIntermediate,
			Content: "Use present perfect for actions starting in past and continuing to now, or for past actions with present relevance. Form: have/has + past participle.",
			Examples: []string{
				"I have lived here for 5 years.",
				"She has already finished her work.",
				"Have you ever been to Japan?",
			},
			CommonMistakes: []string{
				"I am living here since 2020 (should be 'have lived')",
				"I have went there (should be 'have gone')",
			},
		},
		{
			Topic:   "conditionals_first",
			Level:   models.LevelIntermediate,
			Content: "First conditional for real/possible future situations. Structure: If + present simple, will + base verb.",
			Examples: []string{
				"If it rains tomorrow, I will stay home.",
				"If you study hard, you will pass the exam.",
				"I will call you if I have time.",
			},
			CommonMistakes: []string{
				"If it will rain tomorrow... (use present simple after 'if')",
				"If I will have time... (wrong tense)",
			},
		},
		{
			Topic:   "past_perfect",
			Level:   models.LevelIntermediate,
			Content: "Use past perfect for an action that happened before another past action. Form: had + past participle.",
			Examples: []string{
				"When I arrived, they had already left.",
				"She realized she had forgotten her keys.",
				"He had never seen snow before that day.",
			},
			CommonMistakes: []string{
				"When I arrived, they already left (should use 'had left')",
				"Before I moved here, I never saw snow (should use 'had seen')",
			},
		},

		// Advanced
		{
			Topic:   "conditionals_third",
			Level:   models.LevelAdvanced,
			Content: "Third conditional for unreal past situations. Structure: If + past perfect, would have + past participle.",
			Examples: []string{
				"If I had known, I would have helped.",
				"She would have passed if she had studied more.",
				"If they had left earlier, they wouldn't have missed the train.",
			},
			CommonMistakes: []string{
				"If I would have known... (should be 'If I had known')",
				"If I had knew... (should be 'had known')",
			},
		},
		{
			Topic:   "subjunctive",
			Level:   models.LevelAdvanced,
			Content: "Use subjunctive after certain verbs (suggest, recommend, insist) and expressions (it's important that). Use base verb form.",
			Examples: []string{
				"I suggest that he be more careful.",
				"It's essential that she arrive on time.",
				"They recommended that we take the early flight.",
			},
			CommonMistakes: []string{
				"I suggest that he is more careful (use base form)",
				"It's important that she arrives (use 'arrive')",
			},
		},
		{
			Topic:   "inversion",
			Level:   models.LevelAdvanced,
			Content: "Use inversion for emphasis with negative adverbs (never, rarely, seldom) and conditional structures.",
			Examples: []string{
				"Never have I seen such beauty.",
				"Rarely does she make mistakes.",
				"Had I known, I would have helped. (= If I had known)",
			},
			CommonMistakes: []string{
				"Never I have seen... (auxiliary must come before subject)",
				"Had I knew... (use past participle)",
			},
		},
	}
}

// DefaultVocabulary returns the built-in vocabulary items per level.
func DefaultVocabulary() []models.VocabularyItem {
	return []models.VocabularyItem{
		// Beginner
		{Word: "appreciate", Definition: "To be thankful for something", Level: models.LevelBeginner, Usage: "I really appreciate your help.", Pronunciation: "/əˈpriːʃieɪt/", Topic: "daily"},
		{Word: "convenient", Definition: "Easy to use or suitable for your needs", Level: models.LevelBeginner, Usage: "This location is very convenient for shopping.", Pronunciation: "/kənˈviːniənt/", Topic: "daily"},
		{Word: "experience", Definition: "Knowledge or skill from doing something", Level: models.LevelBeginner, Usage: "I have five years of experience in teaching.", Pronunciation: "/ɪkˈspɪəriəns/", Topic: "academic"},
		{Word: "journey", Definition: "An act of travelling from one place to another", Level: models.LevelBeginner, Usage: "The journey to the coast took three hours.", Pronunciation: "/ˈdʒɜːni/", Topic: "travel"},

		// Intermediate
		{Word: "accomplish", Definition: "To succeed in doing something", Level: models.LevelIntermediate, Usage: "She accomplished all her goals this year.", Pronunciation: "/əˈkʌmplɪʃ/", Topic: "academic"},
		{Word: "collaborate", Definition: "To work together with others", Level: models.LevelIntermediate, Usage: "We need to collaborate on this project.", Pronunciation: "/kəˈlæbəreɪt/", Topic: "business"},
		{Word: "implement", Definition: "To put a plan or system into action", Level: models.LevelIntermediate, Usage: "The company will implement new policies next month.", Pronunciation: "/ˈɪmplɪment/", Topic: "business"},
		{Word: "perspective", Definition: "A particular way of thinking about something", Level: models.LevelIntermediate, Usage: "From my perspective, this is the best solution.", Pronunciation: "/pəˈspektɪv/", Topic: "academic"},
		{Word: "itinerary", Definition: "A planned route or schedule of a trip", Level: models.LevelIntermediate, Usage: "Our itinerary includes two days in Rome.", Pronunciation: "/aɪˈtɪnərəri/", Topic: "travel"},

		// Advanced
		{Word: "serendipity", Definition: "Finding something good by chance", Level: models.LevelAdvanced, Usage: "Meeting her was pure serendipity.", Pronunciation: "/ˌserənˈdɪpɪti/", Topic: "daily"},
		{Word: "ephemeral", Definition: "Lasting for a very short time", Level: models.LevelAdvanced, Usage: "Fame can be ephemeral in the digital age.", Pronunciation: "/ɪˈfemərəl/", Topic: "academic"},
		{Word: "ubiquitous", Definition: "Present everywhere", Level: models.LevelAdvanced, Usage: "Smartphones have become ubiquitous in modern society.", Pronunciation: "/juːˈbɪkwɪtəs/", Topic: "daily"},
		{Word: "meticulous", Definition: "Very careful and precise", Level: models.LevelAdvanced, Usage: "She is meticulous about her research.", Pronunciation: "/məˈtɪkjʊləs/", Topic: "academic"},
	}
}

// DefaultPronunciation returns the built-in pronunciation guides.
func DefaultPronunciation() []models.PronunciationGuide {
	return []models.PronunciationGuide{
		{Word: "thought", Phonetic: "/θɔːt/", CommonMistakes: "Often pronounced as 'tought' or 'fought'", Tips: "Place tongue between teeth for 'th' sound. The 'ough' is silent."},
		{Word: "through", Phonetic: "/θruː/", CommonMistakes: "Often confused with 'threw'", Tips: "Same 'th' as 'thought'. The 'ough' makes an 'oo' sound."},
		{Word: "clothes", Phonetic: "/kloʊðz/", CommonMistakes: "Often pronounced as 'close' or with a hard 'th'", Tips: "The 'th' is soft (voiced). Don't emphasize the 'e'."},
		{Word: "comfortable", Phonetic: "/ˈkʌmftəbəl/", CommonMistakes: "Pronouncing all syllables: com-for-ta-ble", Tips: "Native speakers say: KUMF-ter-bull (3 syllables)"},
		{Word: "vegetable", Phonetic: "/ˈvedʒtəbəl/", CommonMistakes: "Pronouncing as veg-e-ta-ble (4 syllables)", Tips: "Native speakers say: VEJ-tuh-bull (3 syllables)"},
		{Word: "wednesday", Phonetic: "/ˈwenzdeɪ/", CommonMistakes: "Pronouncing the 'd' sound", Tips: "Say: WENZ-day. The first 'd' is silent."},
		{Word: "february", Phonetic: "/ˈfebrueri/", CommonMistakes: "Saying FEB-yoo-ary", Tips: "Don't skip the first 'r': FEB-roo-ary"},
		{Word: "specific", Phonetic: "/spəˈsɪfɪk/", CommonMistakes: "Saying 'pacific'", Tips: "Stress the second syllable: spuh-SI-fik"},
	}
}

// Seed loads the default material sets into the store. Collections that
// already hold materials are left untouched.
func Seed(ctx context.Context, s store.Store) error {
	if err := s.SeedMaterials(ctx, DefaultGrammarRules(), DefaultVocabulary(), DefaultPronunciation()); err != nil {
		return err
	}
	log.Info().Msg("Default learning materials initialized")
	return nil
}
