package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scoutlink/internal/domain"
)

// NewMessageEvent es el payload publicado tras un envio: el mensaje completo
// mas la vista del lado receptor, para que el cliente actualice el hilo y el
// preview del inbox con un solo evento.
type NewMessageEvent struct {
	Message      domain.Message         `json:"message"`
	ReceiverView domain.ParticipantView `json:"receiver_view"`
}

// Notifier publica eventos post-commit hacia el canal de tiempo real.
// Es un canal advisory: entrega at-least-once mientras el suscriptor este
// conectado, sin buffer para desconectados. Un cliente que se reconecta
// debe reconciliar via el historial antes de confiar en el stream.
type Notifier interface {
	Publish(ctx context.Context, event NewMessageEvent) error
}

// Subscriber entrega los eventos de una conversacion. La funcion de cancel
// libera la suscripcion; el canal se cierra al cancelar.
type Subscriber interface {
	Subscribe(ctx context.Context, conversationKey string) (<-chan NewMessageEvent, func())
}

const subscriberBuffer = 64

// MemoryNotifier es el fan-out en memoria: un mapa de suscriptores por clave
// de conversacion. Los envios son no bloqueantes; a un suscriptor lento se
// le caen eventos en vez de frenar el publish (reconcilia por historial).
type MemoryNotifier struct {
	mu     sync.RWMutex
	subs   map[string]map[string]chan NewMessageEvent
	logger *zap.Logger
}

func NewMemoryNotifier(logger *zap.Logger) *MemoryNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryNotifier{
		subs:   make(map[string]map[string]chan NewMessageEvent),
		logger: logger,
	}
}

func (n *MemoryNotifier) Publish(_ context.Context, event NewMessageEvent) error {
	key := event.Message.ConversationKey

	n.mu.RLock()
	defer n.mu.RUnlock()
	for id, ch := range n.subs[key] {
		select {
		case ch <- event:
		default:
			n.logger.Warn("realtime subscriber lagging, event dropped",
				zap.String("conversation_key", key),
				zap.String("sub_id", id))
		}
	}
	return nil
}

func (n *MemoryNotifier) Subscribe(ctx context.Context, conversationKey string) (<-chan NewMessageEvent, func()) {
	subID := uuid.NewString()
	ch := make(chan NewMessageEvent, subscriberBuffer)

	n.mu.Lock()
	if _, ok := n.subs[conversationKey]; !ok {
		n.subs[conversationKey] = make(map[string]chan NewMessageEvent)
	}
	n.subs[conversationKey][subID] = ch
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			if subs, ok := n.subs[conversationKey]; ok {
				delete(subs, subID)
				if len(subs) == 0 {
					delete(n.subs, conversationKey)
				}
			}
			n.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel
}
