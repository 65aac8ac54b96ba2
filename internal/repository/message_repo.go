package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scoutlink/internal/domain"
)

// MaxPageLimit es el tope de items por pagina que impone el servidor,
// independiente de lo que pida el cliente.
const MaxPageLimit = 50

// MessageRepository es el log append-only de mensajes por conversacion.
// Append es el unico punto de serializacion: dos appends concurrentes a la
// misma conversacion nunca producen secuencias duplicadas ni fuera de orden.
type MessageRepository interface {
	// Append asigna el siguiente seq de la conversacion y persiste el
	// mensaje. El Seq y CreatedAt de entrada se ignoran.
	Append(ctx context.Context, msg domain.Message) (domain.Message, error)
	// ListSince devuelve mensajes con seq > fromSeq en orden ascendente,
	// hasta limit (acotado por MaxPageLimit), y si quedan mas.
	ListSince(ctx context.Context, key string, fromSeq int64, limit int) ([]domain.Message, bool, error)
	// MarkRead marca como leidos los mensajes dirigidos a readerID con
	// seq <= upToSeq. Idempotente y monotono: repetir con un upToSeq igual
	// o menor no cambia nada. Devuelve pgx.ErrNoRows si la conversacion
	// no existe.
	MarkRead(ctx context.Context, key, readerID string, upToSeq int64) error
	// UnreadCount cuenta los mensajes no leidos dirigidos a ownerID.
	UnreadCount(ctx context.Context, key, ownerID string) (int, error)
	// Tail devuelve el ultimo mensaje de la conversacion, o pgx.ErrNoRows.
	Tail(ctx context.Context, key string) (domain.Message, error)
	// Conversations enumera las conversaciones conocidas (reconciliacion).
	Conversations(ctx context.Context) ([]domain.Conversation, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	low, hi := domain.SortPair(msg.SenderID, msg.ReceiverID)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Message{}, fmt.Errorf("begin append tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const ensure = `
		INSERT INTO conversations (key, participant_low, participant_high, last_seq, created_at)
		VALUES ($1, $2, $3, 0, now())
		ON CONFLICT (key) DO NOTHING
	`
	if _, err := tx.Exec(ctx, ensure, msg.ConversationKey, low, hi); err != nil {
		return domain.Message{}, fmt.Errorf("ensure conversation: %w", err)
	}

	// El row lock del UPDATE serializa la asignacion de seq por conversacion.
	const nextSeq = `
		UPDATE conversations SET last_seq = last_seq + 1
		WHERE key = $1
		RETURNING last_seq
	`
	if err := tx.QueryRow(ctx, nextSeq, msg.ConversationKey).Scan(&msg.Seq); err != nil {
		return domain.Message{}, fmt.Errorf("assign sequence: %w", err)
	}

	const insert = `
		INSERT INTO messages (conversation_key, seq, sender_id, receiver_id, content, read, created_at)
		VALUES ($1, $2, $3, $4, $5, false, now())
		RETURNING created_at
	`
	if err := tx.QueryRow(ctx, insert,
		msg.ConversationKey,
		msg.Seq,
		msg.SenderID,
		msg.ReceiverID,
		msg.Content,
	).Scan(&msg.CreatedAt); err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Message{}, fmt.Errorf("commit append: %w", err)
	}
	msg.Read = false
	return msg, nil
}

func (r *PgMessageRepository) ListSince(ctx context.Context, key string, fromSeq int64, limit int) ([]domain.Message, bool, error) {
	limit = clampLimit(limit)

	const query = `
		SELECT conversation_key, seq, sender_id, receiver_id, content, read, created_at
		FROM messages
		WHERE conversation_key = $1 AND seq > $2
		ORDER BY seq ASC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, key, fromSeq, limit+1)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ConversationKey,
			&msg.Seq,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.Content,
			&msg.Read,
			&msg.CreatedAt,
		); err != nil {
			return nil, false, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	return messages, hasMore, nil
}

func (r *PgMessageRepository) MarkRead(ctx context.Context, key, readerID string, upToSeq int64) error {
	var exists bool
	const check = `SELECT EXISTS (SELECT 1 FROM conversations WHERE key = $1)`
	if err := r.pool.QueryRow(ctx, check, key).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}

	const update = `
		UPDATE messages SET read = true
		WHERE conversation_key = $1 AND receiver_id = $2 AND seq <= $3 AND read = false
	`
	_, err := r.pool.Exec(ctx, update, key, readerID, upToSeq)
	return err
}

func (r *PgMessageRepository) UnreadCount(ctx context.Context, key, ownerID string) (int, error) {
	const query = `
		SELECT count(*) FROM messages
		WHERE conversation_key = $1 AND receiver_id = $2 AND read = false
	`
	var count int
	err := r.pool.QueryRow(ctx, query, key, ownerID).Scan(&count)
	return count, err
}

func (r *PgMessageRepository) Tail(ctx context.Context, key string) (domain.Message, error) {
	const query = `
		SELECT conversation_key, seq, sender_id, receiver_id, content, read, created_at
		FROM messages
		WHERE conversation_key = $1
		ORDER BY seq DESC
		LIMIT 1
	`
	var msg domain.Message
	err := r.pool.QueryRow(ctx, query, key).Scan(
		&msg.ConversationKey,
		&msg.Seq,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Content,
		&msg.Read,
		&msg.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, err
	}
	return msg, err
}

func (r *PgMessageRepository) Conversations(ctx context.Context) ([]domain.Conversation, error) {
	const query = `
		SELECT key, participant_low, participant_high, last_seq, created_at
		FROM conversations
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.Key, &c.ParticipantLow, &c.ParticipantHi, &c.LastSeq, &c.CreatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}
