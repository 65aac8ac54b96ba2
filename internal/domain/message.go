package domain

import "time"

// Message es un mensaje inmutable dentro de una conversacion. Seq es el
// ordinal monotono asignado por el log en el append; nunca se reutiliza
// ni se reordena.
type Message struct {
	ConversationKey string    `json:"conversation_key"`
	Seq             int64     `json:"seq"`
	SenderID        string    `json:"sender_id"`
	ReceiverID      string    `json:"receiver_id"`
	Content         string    `json:"content"`
	Read            bool      `json:"read"`
	CreatedAt       time.Time `json:"created_at"`
}
