package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"

	"scoutlink/internal/domain"
)

// MemoryViewRepository es el gemelo en memoria de PgViewRepository.
type MemoryViewRepository struct {
	mu    sync.Mutex
	views map[string]map[string]domain.ParticipantView // ownerID -> key -> view
}

func NewMemoryViewRepository() *MemoryViewRepository {
	return &MemoryViewRepository{views: make(map[string]map[string]domain.ParticipantView)}
}

func (r *MemoryViewRepository) apply(owner string, msg domain.Message, other domain.Profile, delta int) {
	rows, ok := r.views[owner]
	if !ok {
		rows = make(map[string]domain.ParticipantView)
		r.views[owner] = rows
	}

	v, exists := rows[msg.ConversationKey]
	if exists && v.AppliedSeq >= msg.Seq {
		// Ya aplicado: el replay no debe tocar el contador.
		return
	}
	if !exists {
		v = domain.ParticipantView{OwnerID: owner, ConversationKey: msg.ConversationKey}
	}

	v.OtherUserID = other.ID
	v.OtherDisplayName = other.DisplayName
	v.OtherAvatarURL = other.AvatarURL
	v.LastContent = msg.Content
	v.LastSenderID = msg.SenderID
	if delta == 0 {
		v.Unread = 0
	} else {
		v.Unread += delta
	}
	v.AppliedSeq = msg.Seq
	v.LastActivity = msg.CreatedAt
	rows[msg.ConversationKey] = v
}

func (r *MemoryViewRepository) ApplyMessage(_ context.Context, msg domain.Message, sender, receiver domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apply(msg.SenderID, msg, receiver, 0)
	r.apply(msg.ReceiverID, msg, sender, 1)
	return nil
}

func (r *MemoryViewRepository) List(_ context.Context, ownerID, cursor string, limit int) ([]domain.ParticipantView, string, error) {
	limit = clampLimit(limit)

	r.mu.Lock()
	all := make([]domain.ParticipantView, 0, len(r.views[ownerID]))
	for _, v := range r.views[ownerID] {
		all = append(all, v)
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].LastActivity.Equal(all[j].LastActivity) {
			return all[i].LastActivity.After(all[j].LastActivity)
		}
		return all[i].ConversationKey > all[j].ConversationKey
	})

	start := 0
	if c, ok := decodeInboxCursor(cursor); ok {
		start = len(all)
		for i, v := range all {
			if v.LastActivity.UnixNano() < c.LastActivity ||
				(v.LastActivity.UnixNano() == c.LastActivity && v.ConversationKey < c.Key) {
				start = i
				break
			}
		}
	}

	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]

	var next string
	if end < len(all) && len(page) > 0 {
		last := page[len(page)-1]
		next = encodeInboxCursor(last.LastActivity, last.ConversationKey)
	}
	return page, next, nil
}

func (r *MemoryViewRepository) ResetUnread(_ context.Context, ownerID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[ownerID][key]
	if !ok {
		return pgx.ErrNoRows
	}
	v.Unread = 0
	r.views[ownerID][key] = v
	return nil
}

func (r *MemoryViewRepository) Get(_ context.Context, ownerID, key string) (domain.ParticipantView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[ownerID][key]
	if !ok {
		return domain.ParticipantView{}, pgx.ErrNoRows
	}
	return v, nil
}

func (r *MemoryViewRepository) Put(_ context.Context, view domain.ParticipantView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows, ok := r.views[view.OwnerID]
	if !ok {
		rows = make(map[string]domain.ParticipantView)
		r.views[view.OwnerID] = rows
	}
	rows[view.ConversationKey] = view
	return nil
}
