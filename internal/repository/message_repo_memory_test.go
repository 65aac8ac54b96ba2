package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"

	"scoutlink/internal/domain"
)

func appendMsg(t *testing.T, repo MessageRepository, key, sender, receiver, content string) domain.Message {
	t.Helper()
	msg, err := repo.Append(context.Background(), domain.Message{
		ConversationKey: key,
		SenderID:        sender,
		ReceiverID:      receiver,
		Content:         content,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return msg
}

func TestAppendAssignsContiguousSequences(t *testing.T) {
	repo := NewMemoryMessageRepository()
	for i := 1; i <= 3; i++ {
		msg := appendMsg(t, repo, "u1_u2", "u1", "u2", "hola")
		if msg.Seq != int64(i) {
			t.Fatalf("expected seq %d, got %d", i, msg.Seq)
		}
	}
}

func TestAppendConcurrentSequencesAreDistinctAndContiguous(t *testing.T) {
	repo := NewMemoryMessageRepository()
	const n = 200

	var wg sync.WaitGroup
	seqs := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg, err := repo.Append(context.Background(), domain.Message{
				ConversationKey: "u1_u2",
				SenderID:        "u1",
				ReceiverID:      "u2",
				Content:         "hola",
			})
			if err != nil {
				t.Errorf("append: %v", err)
				return
			}
			seqs <- msg.Seq
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool, n)
	for seq := range seqs {
		if seen[seq] {
			t.Fatalf("duplicate sequence %d", seq)
		}
		seen[seq] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d sequences, got %d", n, len(seen))
	}
	for i := int64(1); i <= n; i++ {
		if !seen[i] {
			t.Fatalf("sequence %d missing, assignment not contiguous", i)
		}
	}
}

func TestListSincePagination(t *testing.T) {
	repo := NewMemoryMessageRepository()
	for i := 0; i < 5; i++ {
		appendMsg(t, repo, "u1_u2", "u1", "u2", "hola")
	}

	page, hasMore, err := repo.ListSince(context.Background(), "u1_u2", 0, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || !hasMore {
		t.Fatalf("expected 2 items and hasMore, got %d %v", len(page), hasMore)
	}
	if page[0].Seq != 1 || page[1].Seq != 2 {
		t.Fatalf("expected ascending seqs 1,2, got %d,%d", page[0].Seq, page[1].Seq)
	}

	page, hasMore, err = repo.ListSince(context.Background(), "u1_u2", page[1].Seq, 10)
	if err != nil {
		t.Fatalf("list rest: %v", err)
	}
	if len(page) != 3 || hasMore {
		t.Fatalf("expected final 3 items, got %d hasMore=%v", len(page), hasMore)
	}
}

func TestListSinceCapsLimit(t *testing.T) {
	repo := NewMemoryMessageRepository()
	for i := 0; i < MaxPageLimit+10; i++ {
		appendMsg(t, repo, "u1_u2", "u1", "u2", "hola")
	}

	page, hasMore, err := repo.ListSince(context.Background(), "u1_u2", 0, 10_000)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != MaxPageLimit || !hasMore {
		t.Fatalf("expected server cap %d, got %d hasMore=%v", MaxPageLimit, len(page), hasMore)
	}
}

func TestListSinceUnknownConversation(t *testing.T) {
	repo := NewMemoryMessageRepository()
	page, hasMore, err := repo.ListSince(context.Background(), "u1_u2", 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 0 || hasMore {
		t.Fatalf("expected empty page, got %d hasMore=%v", len(page), hasMore)
	}
}

func TestMarkReadIsIdempotentAndMonotonic(t *testing.T) {
	repo := NewMemoryMessageRepository()
	for i := 0; i < 3; i++ {
		appendMsg(t, repo, "u1_u2", "u1", "u2", "hola")
	}

	if err := repo.MarkRead(context.Background(), "u1_u2", "u2", 2); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	count, err := repo.UnreadCount(context.Background(), "u1_u2", "u2")
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 unread, got %d", count)
	}

	// Repetir con el mismo upToSeq y con uno menor no cambia nada.
	if err := repo.MarkRead(context.Background(), "u1_u2", "u2", 2); err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if err := repo.MarkRead(context.Background(), "u1_u2", "u2", 1); err != nil {
		t.Fatalf("mark read older: %v", err)
	}
	count, err = repo.UnreadCount(context.Background(), "u1_u2", "u2")
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected unread unchanged at 1, got %d", count)
	}
}

func TestMarkReadOnlyTouchesReaderMessages(t *testing.T) {
	repo := NewMemoryMessageRepository()
	appendMsg(t, repo, "u1_u2", "u1", "u2", "hola")
	appendMsg(t, repo, "u1_u2", "u2", "u1", "que tal")

	if err := repo.MarkRead(context.Background(), "u1_u2", "u2", 10); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	// El mensaje dirigido a u1 sigue sin leer.
	count, err := repo.UnreadCount(context.Background(), "u1_u2", "u1")
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected u1 still has 1 unread, got %d", count)
	}
}

func TestMarkReadUnknownConversation(t *testing.T) {
	repo := NewMemoryMessageRepository()
	if err := repo.MarkRead(context.Background(), "u1_u2", "u2", 1); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
}

func TestTail(t *testing.T) {
	repo := NewMemoryMessageRepository()
	if _, err := repo.Tail(context.Background(), "u1_u2"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows on empty log, got %v", err)
	}

	appendMsg(t, repo, "u1_u2", "u1", "u2", "primero")
	last := appendMsg(t, repo, "u1_u2", "u1", "u2", "segundo")

	tail, err := repo.Tail(context.Background(), "u1_u2")
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if tail.Seq != last.Seq || tail.Content != "segundo" {
		t.Fatalf("expected tail seq=%d content=segundo, got seq=%d content=%q", last.Seq, tail.Seq, tail.Content)
	}
}

func TestConversationsEnumeration(t *testing.T) {
	repo := NewMemoryMessageRepository()
	appendMsg(t, repo, "u1_u2", "u2", "u1", "hola")
	appendMsg(t, repo, "u3_u4", "u3", "u4", "hola")

	convs, err := repo.Conversations(context.Background())
	if err != nil {
		t.Fatalf("conversations: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(convs))
	}
	for _, c := range convs {
		if c.ParticipantLow >= c.ParticipantHi {
			t.Fatalf("participants not sorted: %q %q", c.ParticipantLow, c.ParticipantHi)
		}
		if c.LastSeq != 1 {
			t.Fatalf("expected last_seq 1, got %d", c.LastSeq)
		}
	}
}
