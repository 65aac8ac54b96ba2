package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"scoutlink/internal/domain"
	"scoutlink/internal/identity"
	"scoutlink/internal/realtime"
	"scoutlink/internal/repository"
)

var (
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrInvalidMessage   = errors.New("invalid message")
	ErrNotFound         = errors.New("conversation not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Limits acota la conducta del servicio; los ceros toman el default.
type Limits struct {
	MaxContentLength  int
	HistoryPageLimit  int
	InboxPageLimit    int
	ViewUpdateRetries int
}

const (
	defaultMaxContentLength = 2000
	defaultViewRetries      = 5
	retryBaseDelay          = 50 * time.Millisecond
)

// MessagingService orquesta envios, lecturas y confirmaciones de lectura
// sobre el log de mensajes y las vistas de inbox. Un envio pasa por
// Validated -> Appended -> ViewsUpdated -> Published; el append es el punto
// de durabilidad, lo que sigue es derivado y reintentable.
type MessagingService struct {
	logger    *zap.Logger
	messages  repository.MessageRepository
	views     repository.ViewRepository
	directory identity.Directory
	notifier  realtime.Notifier
	limits    Limits
}

func NewMessagingService(
	logger *zap.Logger,
	messages repository.MessageRepository,
	views repository.ViewRepository,
	directory identity.Directory,
	notifier realtime.Notifier,
	limits Limits,
) *MessagingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.MaxContentLength <= 0 {
		limits.MaxContentLength = defaultMaxContentLength
	}
	if limits.HistoryPageLimit <= 0 || limits.HistoryPageLimit > repository.MaxPageLimit {
		limits.HistoryPageLimit = repository.MaxPageLimit
	}
	if limits.InboxPageLimit <= 0 || limits.InboxPageLimit > repository.MaxPageLimit {
		limits.InboxPageLimit = repository.MaxPageLimit
	}
	if limits.ViewUpdateRetries <= 0 {
		limits.ViewUpdateRetries = defaultViewRetries
	}
	return &MessagingService{
		logger:    logger,
		messages:  messages,
		views:     views,
		directory: directory,
		notifier:  notifier,
		limits:    limits,
	}
}

// SendMessage envia un mensaje del caller al receptor, creando la
// conversacion implicitamente en el primer envio. Devuelve el mensaje
// durable y la vista del propio caller ya actualizada.
func (s *MessagingService) SendMessage(ctx context.Context, callerID, receiverID, content, existingKey string) (domain.Message, domain.ParticipantView, error) {
	callerID = strings.TrimSpace(callerID)
	receiverID = strings.TrimSpace(receiverID)
	existingKey = strings.TrimSpace(existingKey)

	// Validated: autorizacion y forma antes de tocar ningun store.
	if existingKey != "" {
		other, err := domain.ParseKey(existingKey, callerID)
		if err != nil {
			return domain.Message{}, domain.ParticipantView{}, domain.ErrNotParticipant
		}
		if receiverID == "" {
			receiverID = other
		} else if receiverID != other {
			return domain.Message{}, domain.ParticipantView{}, ErrInvalidRecipient
		}
	}
	if receiverID == "" || receiverID == callerID {
		return domain.Message{}, domain.ParticipantView{}, ErrInvalidRecipient
	}

	key := existingKey
	if key == "" {
		derived, err := domain.DeriveKey(callerID, receiverID)
		if err != nil {
			return domain.Message{}, domain.ParticipantView{}, ErrInvalidRecipient
		}
		key = derived
	}

	if err := validateContent(content, s.limits.MaxContentLength); err != nil {
		return domain.Message{}, domain.ParticipantView{}, err
	}

	receiverProfile, err := s.directory.Lookup(ctx, receiverID)
	if err != nil {
		if errors.Is(err, identity.ErrUnknownUser) {
			return domain.Message{}, domain.ParticipantView{}, ErrInvalidRecipient
		}
		// El directorio caido no bloquea el envio: el caller ya esta
		// verificado y el receptor se reconcilia despues.
		s.logger.Warn("identity lookup failed, using bare profile",
			zap.String("user_id", receiverID), zap.Error(err))
		receiverProfile = domain.Profile{ID: receiverID, DisplayName: receiverID}
	}
	senderProfile, err := s.directory.Lookup(ctx, callerID)
	if err != nil {
		s.logger.Warn("identity lookup failed, using bare profile",
			zap.String("user_id", callerID), zap.Error(err))
		senderProfile = domain.Profile{ID: callerID, DisplayName: callerID}
	}

	// Appended: punto de durabilidad. Una vez emitido no se cancela por
	// timeout del caller; un reintento ciego duplicaria el mensaje.
	appendCtx := context.WithoutCancel(ctx)
	var msg domain.Message
	err = s.retry(appendCtx, s.limits.ViewUpdateRetries, func() error {
		var appendErr error
		msg, appendErr = s.messages.Append(appendCtx, domain.Message{
			ConversationKey: key,
			SenderID:        callerID,
			ReceiverID:      receiverID,
			Content:         content,
		})
		return appendErr
	})
	if err != nil {
		return domain.Message{}, domain.ParticipantView{}, fmt.Errorf("%w: append: %w", ErrStoreUnavailable, err)
	}

	// ViewsUpdated: derivado del mensaje ya durable, idempotente por
	// applied_seq. Agotar reintentos no falla el envio; la reconciliacion
	// de fondo cierra la brecha.
	err = s.retry(ctx, s.limits.ViewUpdateRetries, func() error {
		return s.views.ApplyMessage(ctx, msg, senderProfile, receiverProfile)
	})
	if err != nil {
		s.logger.Warn("participant views lagging behind message log",
			zap.String("conversation_key", key),
			zap.Int64("seq", msg.Seq),
			zap.Error(err))
	}

	senderView, err := s.views.Get(ctx, callerID, key)
	if err != nil {
		senderView = s.fallbackView(callerID, receiverProfile, msg)
	}

	// Published: advisory. El fallo se registra y se traga; el mensaje ya
	// esta enviado y el cliente reconcilia por historial.
	receiverView, err := s.views.Get(ctx, receiverID, key)
	if err != nil {
		receiverView = s.fallbackView(receiverID, senderProfile, msg)
		receiverView.Unread = 1
	}
	if err := s.notifier.Publish(ctx, realtime.NewMessageEvent{Message: msg, ReceiverView: receiverView}); err != nil {
		s.logger.Warn("realtime publish failed",
			zap.String("conversation_key", key),
			zap.Int64("seq", msg.Seq),
			zap.Error(err))
	}

	return msg, senderView, nil
}

// GetHistory devuelve una pagina del historial en orden ascendente de seq.
func (s *MessagingService) GetHistory(ctx context.Context, callerID, key, cursor string, limit int) ([]domain.Message, string, error) {
	if _, err := domain.ParseKey(key, callerID); err != nil {
		return nil, "", domain.ErrNotParticipant
	}
	if limit <= 0 || limit > s.limits.HistoryPageLimit {
		limit = s.limits.HistoryPageLimit
	}

	fromSeq := repository.DecodeSeqCursor(cursor)
	items, hasMore, err := s.messages.ListSince(ctx, key, fromSeq, limit)
	if err != nil {
		return nil, "", fmt.Errorf("list history: %w", err)
	}
	if len(items) == 0 && fromSeq == 0 {
		// Clave bien formada pero sin ningun envio todavia.
		return nil, "", ErrNotFound
	}

	var next string
	if hasMore && len(items) > 0 {
		next = repository.EncodeSeqCursor(items[len(items)-1].Seq)
	}
	return items, next, nil
}

// ListInbox devuelve las conversaciones del caller, actividad descendente.
func (s *MessagingService) ListInbox(ctx context.Context, callerID, cursor string, limit int) ([]domain.ParticipantView, string, error) {
	if limit <= 0 || limit > s.limits.InboxPageLimit {
		limit = s.limits.InboxPageLimit
	}
	items, next, err := s.views.List(ctx, callerID, cursor, limit)
	if err != nil {
		return nil, "", fmt.Errorf("list inbox: %w", err)
	}
	return items, next, nil
}

// MarkConversationRead confirma lectura hasta upToSeq inclusive y deja el
// contador de no leidos del caller en cero. Monotono: un upToSeq viejo es
// un no-op seguro. No emite evento de tiempo real.
func (s *MessagingService) MarkConversationRead(ctx context.Context, callerID, key string, upToSeq int64) error {
	if _, err := domain.ParseKey(key, callerID); err != nil {
		return domain.ErrNotParticipant
	}
	if upToSeq < 0 {
		upToSeq = 0
	}

	if err := s.messages.MarkRead(ctx, key, callerID, upToSeq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("mark read: %w", err)
	}
	if err := s.views.ResetUnread(ctx, callerID, key); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		// La vista se queda atras, no el log: lo corrige la reconciliacion.
		s.logger.Warn("reset unread failed",
			zap.String("conversation_key", key),
			zap.String("owner_id", callerID),
			zap.Error(err))
	}
	return nil
}

func (s *MessagingService) fallbackView(ownerID string, other domain.Profile, msg domain.Message) domain.ParticipantView {
	return domain.ParticipantView{
		OwnerID:          ownerID,
		ConversationKey:  msg.ConversationKey,
		OtherUserID:      other.ID,
		OtherDisplayName: other.DisplayName,
		OtherAvatarURL:   other.AvatarURL,
		LastContent:      msg.Content,
		LastSenderID:     msg.SenderID,
		AppliedSeq:       msg.Seq,
		LastActivity:     msg.CreatedAt,
	}
}

// retry ejecuta op con backoff exponencial hasta attempts intentos.
func (s *MessagingService) retry(ctx context.Context, attempts int, op func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBaseDelay << i):
		}
	}
	return err
}

func validateContent(content string, max int) error {
	if strings.TrimSpace(content) == "" {
		return ErrInvalidMessage
	}
	if len(content) > max {
		return ErrInvalidMessage
	}
	return nil
}
