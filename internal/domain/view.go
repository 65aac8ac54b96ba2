package domain

import "time"

// ParticipantView es la fila desnormalizada por (owner, conversacion) que
// alimenta el inbox sin tocar el log de mensajes. AppliedSeq es la marca de
// agua del ultimo mensaje reflejado; las actualizaciones con un seq menor o
// igual se descartan, lo que hace el doble write reintentable sin duplicar
// el contador de no leidos.
type ParticipantView struct {
	OwnerID          string    `json:"owner_id"`
	ConversationKey  string    `json:"conversation_key"`
	OtherUserID      string    `json:"other_user_id"`
	OtherDisplayName string    `json:"other_display_name"`
	OtherAvatarURL   string    `json:"other_avatar_url"`
	LastContent      string    `json:"last_content"`
	LastSenderID     string    `json:"last_sender_id"`
	Unread           int       `json:"unread"`
	AppliedSeq       int64     `json:"applied_seq"`
	LastActivity     time.Time `json:"last_activity"`
}
