// Package retrieval assembles supplementary learning context for an
// utterance: grammar tips, vocabulary and pronunciation guides, fetched
// concurrently with a keyword-first, semantic-rerank-fallback chain.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"ai-practice-session-service/internal/models"
	"ai-practice-session-service/internal/observability/metrics"
	"ai-practice-session-service/internal/store"
)

// rankerPoolSize is how many candidates a configured ranker gets to
// choose from.
const rankerPoolSize = 15

// Config holds retrieval engine settings.
type Config struct {
	CacheSize    int
	DefaultLimit int
}

// Engine retrieves relevant learning materials for user utterances.
type Engine struct {
	store        store.Store
	ranker       *Ranker
	cache        *contextCache
	defaultLimit int
	metrics      *metrics.Metrics
}

// New creates a retrieval engine. The ranker may be nil, in which case
// keyword ordering is used throughout.
func New(s store.Store, ranker *Ranker, cfg Config) *Engine {
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 256
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = 3
	}
	return &Engine{
		store:        s,
		ranker:       ranker,
		cache:        newContextCache(cacheSize),
		defaultLimit: defaultLimit,
		metrics:      metrics.DefaultMetrics,
	}
}

// Retrieve assembles the context blob for an utterance. It never fails:
// lookup errors degrade to partial or empty output, and an utterance
// with no matches anywhere yields an empty string.
func (e *Engine) Retrieve(ctx context.Context, utterance string, level models.Level, limit int) string {
	start := time.Now()
	if limit <= 0 {
		limit = e.defaultLimit
	}

	key := cacheKey(utterance, level)
	if blob, ok := e.cache.get(key); ok {
		e.metrics.RecordRetrieval(true, time.Since(start).Seconds())
		return blob
	}

	words := utteranceWords(utterance)

	var (
		grammar []models.GrammarRule
		vocab   []models.VocabularyItem
		pron    []models.PronunciationGuide
	)

	// The three lookups are independent: one failing must not block or
	// fail the others, so each contains its own error.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		grammar = e.grammarLookup(gctx, utterance, words, level, limit)
		return nil
	})
	g.Go(func() error {
		vocab = e.vocabularyLookup(gctx, utterance, words, level, limit)
		return nil
	})
	g.Go(func() error {
		pron = e.pronunciationLookup(gctx, words)
		return nil
	})
	_ = g.Wait()

	blob := buildContext(grammar, vocab, pron)
	e.cache.put(key, blob)
	e.metrics.RecordRetrieval(false, time.Since(start).Seconds())

	return blob
}

func (e *Engine) grammarLookup(ctx context.Context, utterance string, words []string, level models.Level, limit int) []models.GrammarRule {
	poolLimit := limit
	if e.ranker != nil {
		poolLimit = rankerPoolSize
	}

	var pool []models.GrammarRule
	if topics := grammarTopics(words); len(topics) > 0 {
		rules, err := e.store.FindGrammarRules(ctx, level, topics, poolLimit)
		if err != nil {
			e.metrics.RecordLookupError("grammar")
			log.Warn().Err(err).Msg("Grammar lookup failed")
			return nil
		}
		pool = rules
	}

	// Thin pool: pad with generic materials for the level.
	if len(pool) < limit {
		generic, err := e.store.GrammarRulesByLevel(ctx, level, poolLimit)
		if err != nil {
			e.metrics.RecordLookupError("grammar")
			log.Warn().Err(err).Msg("Grammar lookup failed")
		} else {
			pool = mergeGrammar(pool, generic, poolLimit)
		}
	}
	if len(pool) == 0 {
		return nil
	}

	if e.ranker != nil {
		candidates := make([]candidate, 0, len(pool))
		for _, r := range pool {
			candidates = append(candidates, candidate{ID: r.Topic, Text: r.Content})
		}
		ids, err := e.ranker.Rank(ctx, utterance, "grammar rule", candidates, limit)
		if err != nil {
			e.metrics.RecordRankerFallback("grammar")
			log.Debug().Err(err).Msg("Semantic rank failed, keeping keyword order")
		} else {
			byTopic := make(map[string]models.GrammarRule, len(pool))
			for _, r := range pool {
				byTopic[strings.ToLower(r.Topic)] = r
			}
			ranked := make([]models.GrammarRule, 0, len(ids))
			for _, id := range ids {
				if r, ok := byTopic[id]; ok {
					ranked = append(ranked, r)
				}
			}
			if len(ranked) > 0 {
				return ranked
			}
		}
	}

	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool
}

func (e *Engine) vocabularyLookup(ctx context.Context, utterance string, words []string, level models.Level, limit int) []models.VocabularyItem {
	poolLimit := limit
	if e.ranker != nil {
		poolLimit = rankerPoolSize
	}

	var pool []models.VocabularyItem
	for _, topic := range vocabularyTopics(words) {
		items, err := e.store.FindVocabulary(ctx, level, topic, poolLimit)
		if err != nil {
			e.metrics.RecordLookupError("vocabulary")
			log.Warn().Err(err).Msg("Vocabulary lookup failed")
			return nil
		}
		pool = mergeVocabulary(pool, items, poolLimit)
	}

	if len(pool) < limit {
		generic, err := e.store.VocabularyByLevel(ctx, level, poolLimit)
		if err != nil {
			e.metrics.RecordLookupError("vocabulary")
			log.Warn().Err(err).Msg("Vocabulary lookup failed")
		} else {
			pool = mergeVocabulary(pool, generic, poolLimit)
		}
	}
	if len(pool) == 0 {
		return nil
	}

	if e.ranker != nil {
		candidates := make([]candidate, 0, len(pool))
		for _, v := range pool {
			candidates = append(candidates, candidate{ID: v.Word, Text: v.Definition})
		}
		ids, err := e.ranker.Rank(ctx, utterance, "vocabulary", candidates, limit)
		if err != nil {
			e.metrics.RecordRankerFallback("vocabulary")
			log.Debug().Err(err).Msg("Semantic rank failed, keeping keyword order")
		} else {
			byWord := make(map[string]models.VocabularyItem, len(pool))
			for _, v := range pool {
				byWord[strings.ToLower(v.Word)] = v
			}
			ranked := make([]models.VocabularyItem, 0, len(ids))
			for _, id := range ids {
				if v, ok := byWord[id]; ok {
					ranked = append(ranked, v)
				}
			}
			if len(ranked) > 0 {
				return ranked
			}
		}
	}

	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool
}

// pronunciationLookup has no generic fallback: no difficult-pattern
// word in the utterance means no pronunciation section at all.
func (e *Engine) pronunciationLookup(ctx context.Context, words []string) []models.PronunciationGuide {
	difficult := difficultWords(words)
	if len(difficult) == 0 {
		return nil
	}
	guides, err := e.store.FindPronunciation(ctx, difficult, 2)
	if err != nil {
		e.metrics.RecordLookupError("pronunciation")
		log.Warn().Err(err).Msg("Pronunciation lookup failed")
		return nil
	}
	return guides
}

// buildContext concatenates the non-empty sections in fixed order.
func buildContext(grammar []models.GrammarRule, vocab []models.VocabularyItem, pron []models.PronunciationGuide) string {
	var parts []string

	if len(grammar) > 0 {
		parts = append(parts, "GRAMMAR TIPS:")
		for _, r := range grammar {
			parts = append(parts, fmt.Sprintf("- %s: %s", r.Topic, r.Content))
		}
	}

	if len(vocab) > 0 {
		parts = append(parts, "\nVOCABULARY:")
		for _, v := range vocab {
			parts = append(parts, fmt.Sprintf("- %s: %s (Example: %s)", v.Word, v.Definition, v.Usage))
		}
	}

	if len(pron) > 0 {
		parts = append(parts, "\nPRONUNCIATION:")
		for _, p := range pron {
			parts = append(parts, fmt.Sprintf("- %s: %s - %s", p.Word, p.Phonetic, p.Tips))
		}
	}

	return strings.Join(parts, "\n")
}

func mergeGrammar(pool, extra []models.GrammarRule, limit int) []models.GrammarRule {
	seen := make(map[string]bool, len(pool))
	for _, r := range pool {
		seen[strings.ToLower(r.Topic)] = true
	}
	for _, r := range extra {
		if len(pool) >= limit {
			break
		}
		key := strings.ToLower(r.Topic)
		if seen[key] {
			continue
		}
		seen[key] = true
		pool = append(pool, r)
	}
	return pool
}

func mergeVocabulary(pool, extra []models.VocabularyItem, limit int) []models.VocabularyItem {
	seen := make(map[string]bool, len(pool))
	for _, v := range pool {
		seen[strings.ToLower(v.Word)] = true
	}
	for _, v := range extra {
		if len(pool) >= limit {
			break
		}
		key := strings.ToLower(v.Word)
		if seen[key] {
			continue
		}
		seen[key] = true
		pool = append(pool, v)
	}
	return pool
}
