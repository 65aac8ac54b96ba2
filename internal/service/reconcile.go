package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"scoutlink/internal/domain"
	"scoutlink/internal/identity"
	"scoutlink/internal/repository"
)

// Reconciler recorre las conversaciones y recalcula las filas de inbox que
// discrepan del log: marca de agua detras de la cola (envios cuyo update de
// vistas agoto reintentos) o contador de no leidos desviado (reset perdido,
// applies fuera de orden). Corre de fondo; nunca falla un request.
type Reconciler struct {
	logger    *zap.Logger
	messages  repository.MessageRepository
	views     repository.ViewRepository
	directory identity.Directory
	interval  time.Duration
}

func NewReconciler(
	logger *zap.Logger,
	messages repository.MessageRepository,
	views repository.ViewRepository,
	directory identity.Directory,
	interval time.Duration,
) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{
		logger:    logger,
		messages:  messages,
		views:     views,
		directory: directory,
		interval:  interval,
	}
}

// Run bloquea hasta que ctx se cancele, reconciliando cada interval.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.Warn("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep reconcilia las dos vistas de cada conversacion conocida.
func (r *Reconciler) Sweep(ctx context.Context) error {
	convs, err := r.messages.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	for _, conv := range convs {
		for _, owner := range []string{conv.ParticipantLow, conv.ParticipantHi} {
			if err := r.ReconcileView(ctx, owner, conv.Key); err != nil {
				r.logger.Warn("view reconciliation failed",
					zap.String("conversation_key", conv.Key),
					zap.String("owner_id", owner),
					zap.Error(err))
			}
		}
	}
	return nil
}

// ReconcileView reconstruye la fila (owner, key) desde el log si su marca
// de agua quedo detras de la cola o si su contador de no leidos discrepa de
// las banderas de lectura del log. Las banderas del log son la fuente de
// verdad: MarkRead siempre corre antes que ResetUnread, asi que una vista con
// marca al dia todavia puede arrastrar un contador viejo (reset perdido, o
// applies fuera de orden descartados por la marca de agua). Computa todo
// desde el estado verdadero, asi que es seguro repetirlo.
func (r *Reconciler) ReconcileView(ctx context.Context, ownerID, key string) error {
	tail, err := r.messages.Tail(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("read log tail: %w", err)
	}

	view, verr := r.views.Get(ctx, ownerID, key)
	if verr != nil && !errors.Is(verr, pgx.ErrNoRows) {
		return fmt.Errorf("read view: %w", verr)
	}

	unread, err := r.messages.UnreadCount(ctx, key, ownerID)
	if err != nil {
		return fmt.Errorf("count unread: %w", err)
	}
	if verr == nil && view.AppliedSeq >= tail.Seq && view.Unread == unread {
		return nil
	}

	otherID, err := domain.ParseKey(key, ownerID)
	if err != nil {
		return err
	}
	other, err := r.directory.Lookup(ctx, otherID)
	if err != nil {
		other = domain.Profile{ID: otherID, DisplayName: otherID}
	}

	return r.views.Put(ctx, domain.ParticipantView{
		OwnerID:          ownerID,
		ConversationKey:  key,
		OtherUserID:      other.ID,
		OtherDisplayName: other.DisplayName,
		OtherAvatarURL:   other.AvatarURL,
		LastContent:      tail.Content,
		LastSenderID:     tail.SenderID,
		Unread:           unread,
		AppliedSeq:       tail.Seq,
		LastActivity:     tail.CreatedAt,
	})
}
