package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"scoutlink/internal/domain"
)

// MemoryMessageRepository es el gemelo en memoria de PgMessageRepository,
// para correr sin Postgres y para tests. Cada conversacion lleva su propio
// mutex: appends a conversaciones distintas no se bloquean entre si.
type MemoryMessageRepository struct {
	mu   sync.Mutex
	logs map[string]*memoryLog
}

type memoryLog struct {
	mu   sync.Mutex
	conv domain.Conversation
	msgs []domain.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{logs: make(map[string]*memoryLog)}
}

func (r *MemoryMessageRepository) log(key string, create bool, low, hi string) *memoryLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[key]
	if !ok && create {
		l = &memoryLog{conv: domain.Conversation{
			Key:            key,
			ParticipantLow: low,
			ParticipantHi:  hi,
			CreatedAt:      time.Now().UTC(),
		}}
		r.logs[key] = l
	}
	return l
}

func (r *MemoryMessageRepository) Append(_ context.Context, msg domain.Message) (domain.Message, error) {
	low, hi := domain.SortPair(msg.SenderID, msg.ReceiverID)
	l := r.log(msg.ConversationKey, true, low, hi)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.conv.LastSeq++
	msg.Seq = l.conv.LastSeq
	msg.Read = false
	msg.CreatedAt = time.Now().UTC()
	l.msgs = append(l.msgs, msg)
	return msg, nil
}

func (r *MemoryMessageRepository) ListSince(_ context.Context, key string, fromSeq int64, limit int) ([]domain.Message, bool, error) {
	limit = clampLimit(limit)
	l := r.log(key, false, "", "")
	if l == nil {
		return nil, false, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Message
	for _, msg := range l.msgs {
		if msg.Seq <= fromSeq {
			continue
		}
		if len(out) == limit {
			return out, true, nil
		}
		out = append(out, msg)
	}
	return out, false, nil
}

func (r *MemoryMessageRepository) MarkRead(_ context.Context, key, readerID string, upToSeq int64) error {
	l := r.log(key, false, "", "")
	if l == nil {
		return pgx.ErrNoRows
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.msgs {
		if l.msgs[i].ReceiverID == readerID && l.msgs[i].Seq <= upToSeq {
			l.msgs[i].Read = true
		}
	}
	return nil
}

func (r *MemoryMessageRepository) UnreadCount(_ context.Context, key, ownerID string) (int, error) {
	l := r.log(key, false, "", "")
	if l == nil {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, msg := range l.msgs {
		if msg.ReceiverID == ownerID && !msg.Read {
			count++
		}
	}
	return count, nil
}

func (r *MemoryMessageRepository) Tail(_ context.Context, key string) (domain.Message, error) {
	l := r.log(key, false, "", "")
	if l == nil {
		return domain.Message{}, pgx.ErrNoRows
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.msgs) == 0 {
		return domain.Message{}, pgx.ErrNoRows
	}
	return l.msgs[len(l.msgs)-1], nil
}

func (r *MemoryMessageRepository) Conversations(_ context.Context) ([]domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	convs := make([]domain.Conversation, 0, len(r.logs))
	for _, l := range r.logs {
		l.mu.Lock()
		convs = append(convs, l.conv)
		l.mu.Unlock()
	}
	return convs, nil
}
