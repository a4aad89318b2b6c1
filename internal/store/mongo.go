package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"ai-practice-session-service/internal/models"
)

const (
	collSessions      = "sessions"
	collProgress      = "user_progress"
	collGrammar       = "grammar_rules"
	collVocabulary    = "vocabulary"
	collPronunciation = "pronunciation_guides"
)

// Mongo is a MongoDB-backed Store.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects to MongoDB and prepares indexes.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	m := &Mongo{
		client: client,
		db:     client.Database(database),
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.db.Collection(collProgress).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}
	_, err = m.db.Collection(collGrammar).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "level", Value: 1}, {Key: "topic", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}
	_, err = m.db.Collection(collVocabulary).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "level", Value: 1}, {Key: "topic", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}
	return nil
}

func (m *Mongo) CreateSession(ctx context.Context, session *models.Session) error {
	_, err := m.db.Collection(collSessions).InsertOne(ctx, session)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (m *Mongo) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	err := m.db.Collection(collSessions).FindOne(ctx, bson.M{"_id": sessionID}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &session, nil
}

// AppendTurn pushes a turn and replaces the rolling metrics in a single
// update, conditional on the session still being active.
func (m *Mongo) AppendTurn(ctx context.Context, sessionID string, turn models.Turn, metrics models.SessionMetrics) error {
	res, err := m.db.Collection(collSessions).UpdateOne(ctx,
		bson.M{"_id": sessionID, "status": models.StatusActive},
		bson.M{
			"$push": bson.M{"turns": turn},
			"$set":  bson.M{"metrics": metrics},
		},
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	if res.MatchedCount == 0 {
		// Distinguish missing from completed for the caller.
		if _, err := m.GetSession(ctx, sessionID); err != nil {
			return err
		}
		return ErrSessionCompleted
	}
	return nil
}

func (m *Mongo) CompleteSession(ctx context.Context, sessionID string, endedAt time.Time) (*models.Session, error) {
	after := options.After
	var session models.Session
	err := m.db.Collection(collSessions).FindOneAndUpdate(ctx,
		bson.M{"_id": sessionID, "status": models.StatusActive},
		bson.M{"$set": bson.M{
			"status":   models.StatusCompleted,
			"ended_at": endedAt,
		}},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, err := m.GetSession(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrSessionCompleted
	}
	if err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	return &session, nil
}

func (m *Mongo) SaveProgress(ctx context.Context, progress *models.Progress) error {
	_, err := m.db.Collection(collProgress).InsertOne(ctx, progress)
	if err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	return nil
}

func (m *Mongo) ListProgress(ctx context.Context, userID string, limit int) ([]models.Progress, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.db.Collection(collProgress).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find progress: %w", err)
	}
	var out []models.Progress
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return out, nil
}

func (m *Mongo) FindGrammarRules(ctx context.Context, level models.Level, topics []string, limit int) ([]models.GrammarRule, error) {
	lowered := make([]string, 0, len(topics))
	for _, t := range topics {
		lowered = append(lowered, strings.ToLower(t))
	}
	filter := bson.M{"level": level, "topic": bson.M{"$in": lowered}}
	return m.findGrammar(ctx, filter, limit)
}

func (m *Mongo) GrammarRulesByLevel(ctx context.Context, level models.Level, limit int) ([]models.GrammarRule, error) {
	return m.findGrammar(ctx, bson.M{"level": level}, limit)
}

func (m *Mongo) findGrammar(ctx context.Context, filter bson.M, limit int) ([]models.GrammarRule, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.db.Collection(collGrammar).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find grammar rules: %w", err)
	}
	var out []models.GrammarRule
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode grammar rules: %w", err)
	}
	return out, nil
}

func (m *Mongo) FindVocabulary(ctx context.Context, level models.Level, topic string, limit int) ([]models.VocabularyItem, error) {
	return m.findVocabulary(ctx, bson.M{"level": level, "topic": strings.ToLower(topic)}, limit)
}

func (m *Mongo) VocabularyByLevel(ctx context.Context, level models.Level, limit int) ([]models.VocabularyItem, error) {
	return m.findVocabulary(ctx, bson.M{"level": level}, limit)
}

func (m *Mongo) findVocabulary(ctx context.Context, filter bson.M, limit int) ([]models.VocabularyItem, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.db.Collection(collVocabulary).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find vocabulary: %w", err)
	}
	var out []models.VocabularyItem
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	return out, nil
}

func (m *Mongo) FindPronunciation(ctx context.Context, words []string, limit int) ([]models.PronunciationGuide, error) {
	lowered := make([]string, 0, len(words))
	for _, w := range words {
		lowered = append(lowered, strings.ToLower(w))
	}
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.db.Collection(collPronunciation).Find(ctx, bson.M{"word": bson.M{"$in": lowered}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find pronunciation: %w", err)
	}
	var out []models.PronunciationGuide
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode pronunciation: %w", err)
	}
	return out, nil
}

// SeedMaterials inserts the default material sets into any empty
// materials collection. Non-empty collections are left untouched.
func (m *Mongo) SeedMaterials(ctx context.Context, grammar []models.GrammarRule, vocab []models.VocabularyItem, pron []models.PronunciationGuide) error {
	if err := seedCollection(ctx, m.db.Collection(collGrammar), toAny(grammar)); err != nil {
		return fmt.Errorf("seed grammar: %w", err)
	}
	if err := seedCollection(ctx, m.db.Collection(collVocabulary), toAny(vocab)); err != nil {
		return fmt.Errorf("seed vocabulary: %w", err)
	}
	if err := seedCollection(ctx, m.db.Collection(collPronunciation), toAny(pron)); err != nil {
		return fmt.Errorf("seed pronunciation: %w", err)
	}
	return nil
}

func seedCollection(ctx context.Context, coll *mongo.Collection, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	count, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err = coll.InsertMany(ctx, docs)
	return err
}

func toAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i := range in {
		out[i] = in[i]
	}
	return out
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
