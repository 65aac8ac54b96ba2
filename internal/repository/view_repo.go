package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scoutlink/internal/domain"
)

// ViewRepository mantiene las filas desnormalizadas del inbox, una por
// (owner, conversacion). ApplyMessage actualiza las dos filas de la pareja
// y es idempotente respecto a la marca de agua applied_seq: re-aplicar el
// mismo mensaje (reintentos, reconciliacion) no incrementa dos veces el
// contador de no leidos.
type ViewRepository interface {
	ApplyMessage(ctx context.Context, msg domain.Message, sender, receiver domain.Profile) error
	// List devuelve las conversaciones del owner ordenadas por actividad
	// descendente, con cursor opaco de keyset.
	List(ctx context.Context, ownerID, cursor string, limit int) ([]domain.ParticipantView, string, error)
	ResetUnread(ctx context.Context, ownerID, key string) error
	Get(ctx context.Context, ownerID, key string) (domain.ParticipantView, error)
	// Put sobreescribe una fila completa (camino de reconciliacion).
	Put(ctx context.Context, view domain.ParticipantView) error
}

type PgViewRepository struct {
	pool *pgxpool.Pool
}

func NewPgViewRepository(pool *pgxpool.Pool) *PgViewRepository {
	return &PgViewRepository{pool: pool}
}

// upsertView aplica una fila con guard de marca de agua. delta es el
// incremento del contador de no leidos (0 para el emisor, 1 para el receptor).
const upsertView = `
	INSERT INTO participant_views
		(owner_id, conversation_key, other_user_id, other_display_name, other_avatar_url,
		 last_content, last_sender_id, unread, applied_seq, last_activity)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (owner_id, conversation_key) DO UPDATE SET
		other_display_name = EXCLUDED.other_display_name,
		other_avatar_url   = EXCLUDED.other_avatar_url,
		last_content       = EXCLUDED.last_content,
		last_sender_id     = EXCLUDED.last_sender_id,
		unread             = CASE WHEN $11 = 0 THEN 0 ELSE participant_views.unread + $11 END,
		applied_seq        = EXCLUDED.applied_seq,
		last_activity      = EXCLUDED.last_activity
	WHERE participant_views.applied_seq < EXCLUDED.applied_seq
`

func (r *PgViewRepository) ApplyMessage(ctx context.Context, msg domain.Message, sender, receiver domain.Profile) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin view tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Fila del emisor: acaba de enviar, no tiene nada sin leer.
	if _, err := tx.Exec(ctx, upsertView,
		msg.SenderID, msg.ConversationKey,
		receiver.ID, receiver.DisplayName, receiver.AvatarURL,
		msg.Content, msg.SenderID, 0, msg.Seq, msg.CreatedAt, 0,
	); err != nil {
		return fmt.Errorf("upsert sender view: %w", err)
	}

	// Fila del receptor: un no leido mas.
	if _, err := tx.Exec(ctx, upsertView,
		msg.ReceiverID, msg.ConversationKey,
		sender.ID, sender.DisplayName, sender.AvatarURL,
		msg.Content, msg.SenderID, 1, msg.Seq, msg.CreatedAt, 1,
	); err != nil {
		return fmt.Errorf("upsert receiver view: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit views: %w", err)
	}
	return nil
}

func (r *PgViewRepository) List(ctx context.Context, ownerID, cursor string, limit int) ([]domain.ParticipantView, string, error) {
	limit = clampLimit(limit)

	query := `
		SELECT owner_id, conversation_key, other_user_id, other_display_name, other_avatar_url,
		       last_content, last_sender_id, unread, applied_seq, last_activity
		FROM participant_views
		WHERE owner_id = $1
	`
	args := []any{ownerID}
	if c, ok := decodeInboxCursor(cursor); ok {
		query += ` AND (last_activity, conversation_key) < ($2, $3)`
		args = append(args, time.Unix(0, c.LastActivity).UTC(), c.Key)
	}
	query += fmt.Sprintf(` ORDER BY last_activity DESC, conversation_key DESC LIMIT %d`, limit+1)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var views []domain.ParticipantView
	for rows.Next() {
		var v domain.ParticipantView
		if err := rows.Scan(
			&v.OwnerID, &v.ConversationKey, &v.OtherUserID, &v.OtherDisplayName, &v.OtherAvatarURL,
			&v.LastContent, &v.LastSenderID, &v.Unread, &v.AppliedSeq, &v.LastActivity,
		); err != nil {
			return nil, "", err
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(views) > limit {
		views = views[:limit]
		last := views[len(views)-1]
		next = encodeInboxCursor(last.LastActivity, last.ConversationKey)
	}
	return views, next, nil
}

func (r *PgViewRepository) ResetUnread(ctx context.Context, ownerID, key string) error {
	const query = `
		UPDATE participant_views SET unread = 0
		WHERE owner_id = $1 AND conversation_key = $2
	`
	tag, err := r.pool.Exec(ctx, query, ownerID, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgViewRepository) Get(ctx context.Context, ownerID, key string) (domain.ParticipantView, error) {
	const query = `
		SELECT owner_id, conversation_key, other_user_id, other_display_name, other_avatar_url,
		       last_content, last_sender_id, unread, applied_seq, last_activity
		FROM participant_views
		WHERE owner_id = $1 AND conversation_key = $2
	`
	var v domain.ParticipantView
	err := r.pool.QueryRow(ctx, query, ownerID, key).Scan(
		&v.OwnerID, &v.ConversationKey, &v.OtherUserID, &v.OtherDisplayName, &v.OtherAvatarURL,
		&v.LastContent, &v.LastSenderID, &v.Unread, &v.AppliedSeq, &v.LastActivity,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ParticipantView{}, err
	}
	return v, err
}

func (r *PgViewRepository) Put(ctx context.Context, view domain.ParticipantView) error {
	const query = `
		INSERT INTO participant_views
			(owner_id, conversation_key, other_user_id, other_display_name, other_avatar_url,
			 last_content, last_sender_id, unread, applied_seq, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (owner_id, conversation_key) DO UPDATE SET
			other_user_id      = EXCLUDED.other_user_id,
			other_display_name = EXCLUDED.other_display_name,
			other_avatar_url   = EXCLUDED.other_avatar_url,
			last_content       = EXCLUDED.last_content,
			last_sender_id     = EXCLUDED.last_sender_id,
			unread             = EXCLUDED.unread,
			applied_seq        = EXCLUDED.applied_seq,
			last_activity      = EXCLUDED.last_activity
	`
	_, err := r.pool.Exec(ctx, query,
		view.OwnerID, view.ConversationKey, view.OtherUserID, view.OtherDisplayName, view.OtherAvatarURL,
		view.LastContent, view.LastSenderID, view.Unread, view.AppliedSeq, view.LastActivity,
	)
	return err
}
