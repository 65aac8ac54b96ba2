package repository

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// Los cursores de paginacion son opacos para el cliente: base64 de un JSON
// minimo. Un cursor malformado se interpreta como "desde el principio" en
// vez de fallar, asi un cliente viejo nunca queda trabado.

type inboxCursor struct {
	LastActivity int64  `json:"t"`
	Key          string `json:"k"`
}

func encodeInboxCursor(lastActivity time.Time, key string) string {
	raw, err := json.Marshal(inboxCursor{LastActivity: lastActivity.UnixNano(), Key: key})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeInboxCursor(s string) (inboxCursor, bool) {
	if s == "" {
		return inboxCursor{}, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return inboxCursor{}, false
	}
	var c inboxCursor
	if err := json.Unmarshal(raw, &c); err != nil || c.Key == "" {
		return inboxCursor{}, false
	}
	return c, true
}

type seqCursor struct {
	Seq int64 `json:"s"`
}

// EncodeSeqCursor codifica la posicion dentro del log de mensajes.
func EncodeSeqCursor(seq int64) string {
	raw, err := json.Marshal(seqCursor{Seq: seq})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeSeqCursor devuelve el seq exclusivo desde el cual listar.
// Cursor vacio o malformado equivale a 0 (todo el historial).
func DecodeSeqCursor(s string) int64 {
	if s == "" {
		return 0
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return 0
	}
	var c seqCursor
	if err := json.Unmarshal(raw, &c); err != nil || c.Seq < 0 {
		return 0
	}
	return c.Seq
}
