// Package topics persists recorded discussion topics and their source
// messages, and answers similarity queries over topic summaries.
package topics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// ErrNotFound is returned when a topic id does not exist.
var ErrNotFound = errors.New("topic not found")

// Topic is a persisted, searchable summary of a discussion.
type Topic struct {
	ID        string
	GuildID   string
	Summary   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one recorded chat message belonging to a topic.
type Message struct {
	MessageID string
	TopicID   string
	GuildID   string
	ChannelID string
	AuthorID  string
	Content   string
	Timestamp time.Time
}

// TopicWithMessages bundles a topic with its recorded messages.
type TopicWithMessages struct {
	Topic
	Messages []Message
}

// Store provides topic CRUD and embedding-based similarity search over a
// SQLite database. Safe for concurrent use.
type Store struct {
	db       *sql.DB
	embedder Embedder
}

// relatedThreshold is the minimum cosine similarity for a topic to count as
// related to a query.
const relatedThreshold = 0.35

// Open opens (creating if needed) the topic database at path.
// Use ":memory:" for an ephemeral store.
func Open(path string, embedder Embedder) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, embedder: embedder}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS guilds (
			id TEXT PRIMARY KEY,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS topics (
			id TEXT PRIMARY KEY,
			guild_id TEXT NOT NULL,
			summary TEXT NOT NULL,
			embedding BLOB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS topic_messages (
			message_id TEXT NOT NULL,
			topic_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			author_id TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			PRIMARY KEY (message_id, topic_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_topics_guild ON topics(guild_id)`,
		`CREATE INDEX IF NOT EXISTS idx_topic_messages_topic ON topic_messages(topic_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the topic with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Topic, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, guild_id, summary, created_at, updated_at FROM topics WHERE id = ?`, id)

	var t Topic
	if err := row.Scan(&t.ID, &t.GuildID, &t.Summary, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return &t, nil
}

// Messages returns the recorded messages of a topic, oldest first.
func (s *Store) Messages(ctx context.Context, topicID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, topic_id, guild_id, channel_id, author_id, content, timestamp
		 FROM topic_messages WHERE topic_id = ? ORDER BY timestamp ASC`, topicID)
	if err != nil {
		return nil, fmt.Errorf("query topic messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.MessageID, &m.TopicID, &m.GuildID, &m.ChannelID, &m.AuthorID, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan topic message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Create persists a new topic with the given summary and messages.
// The summary is embedded for later similarity queries.
func (s *Store) Create(ctx context.Context, guildID, summary string, messages []Message) (*Topic, error) {
	embedding, err := s.embedder.Embed(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("embed summary: %w", err)
	}

	now := time.Now().UTC()
	topic := &Topic{
		ID:        uuid.New().String(),
		GuildID:   guildID,
		Summary:   summary,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO topics (id, guild_id, summary, embedding, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		topic.ID, topic.GuildID, topic.Summary, encodeEmbedding(embedding), topic.CreatedAt, topic.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert topic: %w", err)
	}

	if err := insertMessages(ctx, tx, topic.ID, messages); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return topic, nil
}

// Delete removes a topic and its recorded messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, `DELETE FROM topic_messages WHERE topic_id = ?`, id); err != nil {
		return fmt.Errorf("delete topic messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM topics WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}

	return tx.Commit()
}

// Merge upserts the given messages into an existing topic's message set.
// Existing rows keep their place; matching ids get refreshed content.
func (s *Store) Merge(ctx context.Context, topicID string, messages []Message) (*Topic, error) {
	topic, err := s.Get(ctx, topicID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	for _, m := range messages {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO topic_messages (message_id, topic_id, guild_id, channel_id, author_id, content, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (message_id, topic_id) DO UPDATE SET content = excluded.content`,
			m.MessageID, topicID, m.GuildID, m.ChannelID, m.AuthorID, m.Content, m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("upsert topic message %s: %w", m.MessageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return topic, nil
}

// UpdateSummary replaces a topic's summary and re-embeds it.
func (s *Store) UpdateSummary(ctx context.Context, topicID, summary string) error {
	embedding, err := s.embedder.Embed(ctx, summary)
	if err != nil {
		return fmt.Errorf("embed summary: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE topics SET summary = ?, embedding = ?, updated_at = ? WHERE id = ?`,
		summary, encodeEmbedding(embedding), time.Now().UTC(), topicID)
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Related returns the guild's topics most similar to the query text, best
// match first.
func (s *Store) Related(ctx context.Context, query, guildID string, limit int) ([]Topic, error) {
	scored, err := s.relatedScored(ctx, query, guildID, limit)
	if err != nil {
		return nil, err
	}
	result := make([]Topic, len(scored))
	for i, sc := range scored {
		result[i] = sc.topic
	}
	return result, nil
}

// RelatedWithMessages is Related with each topic's recorded messages attached.
func (s *Store) RelatedWithMessages(ctx context.Context, query, guildID string, limit int) ([]TopicWithMessages, error) {
	scored, err := s.relatedScored(ctx, query, guildID, limit)
	if err != nil {
		return nil, err
	}

	result := make([]TopicWithMessages, 0, len(scored))
	for _, sc := range scored {
		messages, err := s.Messages(ctx, sc.topic.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, TopicWithMessages{Topic: sc.topic, Messages: messages})
	}
	return result, nil
}

type scoredTopic struct {
	topic Topic
	score float64
}

func (s *Store) relatedScored(ctx context.Context, query, guildID string, limit int) ([]scoredTopic, error) {
	if limit <= 0 {
		limit = 5
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, guild_id, summary, embedding, created_at, updated_at FROM topics WHERE guild_id = ?`, guildID)
	if err != nil {
		return nil, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	var scored []scoredTopic
	for rows.Next() {
		var t Topic
		var blob []byte
		if err := rows.Scan(&t.ID, &t.GuildID, &t.Summary, &blob, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}

		score := cosineSimilarity(queryEmbedding, decodeEmbedding(blob))
		if score < relatedThreshold {
			continue
		}
		scored = append(scored, scoredTopic{topic: t, score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// EnsureGuild registers a guild, refreshing its updated_at when it already
// exists.
func (s *Store) EnsureGuild(ctx context.Context, guildID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO guilds (id) VALUES (?)
		 ON CONFLICT (id) DO UPDATE SET updated_at = CURRENT_TIMESTAMP`, guildID)
	if err != nil {
		return fmt.Errorf("ensure guild: %w", err)
	}
	return nil
}

// RemoveGuild unregisters a guild and drops all topics recorded for it.
func (s *Store) RemoveGuild(ctx context.Context, guildID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(tx)

	if _, err := tx.ExecContext(ctx, `DELETE FROM topic_messages WHERE guild_id = ?`, guildID); err != nil {
		return fmt.Errorf("delete guild messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM topics WHERE guild_id = ?`, guildID); err != nil {
		return fmt.Errorf("delete guild topics: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM guilds WHERE id = ?`, guildID); err != nil {
		return fmt.Errorf("delete guild: %w", err)
	}

	return tx.Commit()
}

func insertMessages(ctx context.Context, tx *sql.Tx, topicID string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO topic_messages (message_id, topic_id, guild_id, channel_id, author_id, content, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare message insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range messages {
		if _, err := stmt.ExecContext(ctx, m.MessageID, topicID, m.GuildID, m.ChannelID, m.AuthorID, m.Content, m.Timestamp); err != nil {
			return fmt.Errorf("insert topic message %s: %w", m.MessageID, err)
		}
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		_ = err
	}
}

// encodeEmbedding converts []float32 to little-endian bytes for storage.
func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	data := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		bits := math.Float32bits(f)
		data[i*4] = byte(bits)
		data[i*4+1] = byte(bits >> 8)
		data[i*4+2] = byte(bits >> 16)
		data[i*4+3] = byte(bits >> 24)
	}
	return data
}

// decodeEmbedding converts stored bytes back to []float32.
func decodeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		bits := uint32(data[i*4]) |
			uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 |
			uint32(data[i*4+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
