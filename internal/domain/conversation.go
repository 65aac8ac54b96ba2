package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidParticipants = errors.New("invalid participants")
	ErrNotParticipant      = errors.New("not a participant")
)

// keySeparator une los dos ids de participantes dentro de la clave.
const keySeparator = "_"

// Conversation es el registro por pareja de usuarios: la clave derivada,
// los dos participantes ordenados y el ultimo numero de secuencia asignado.
type Conversation struct {
	Key            string    `json:"key"`
	ParticipantLow string    `json:"participant_low"`
	ParticipantHi  string    `json:"participant_high"`
	LastSeq        int64     `json:"last_seq"`
	CreatedAt      time.Time `json:"created_at"`
}

// DeriveKey deriva la clave de conversacion para una pareja de usuarios.
// La clave es invariante al orden de los argumentos: min(a,b)_max(a,b).
// Los ids no pueden contener el separador: si lo hicieran, parejas
// distintas podrian derivar la misma clave (a_b/c contra a/b_c).
func DeriveKey(userA, userB string) (string, error) {
	userA = strings.TrimSpace(userA)
	userB = strings.TrimSpace(userB)
	if userA == "" || userB == "" || userA == userB {
		return "", ErrInvalidParticipants
	}
	if strings.Contains(userA, keySeparator) || strings.Contains(userB, keySeparator) {
		return "", ErrInvalidParticipants
	}
	low, hi := SortPair(userA, userB)
	return low + keySeparator + hi, nil
}

// SortPair devuelve la pareja en orden total (low, hi).
func SortPair(userA, userB string) (string, string) {
	if userA > userB {
		return userB, userA
	}
	return userA, userB
}

// ParseKey recupera el id del otro participante a partir de la clave.
// El caller debe ser uno de los dos ids codificados; si no, ErrNotParticipant.
func ParseKey(key, callerID string) (string, error) {
	key = strings.TrimSpace(key)
	callerID = strings.TrimSpace(callerID)
	if key == "" || callerID == "" {
		return "", ErrNotParticipant
	}

	var other string
	switch {
	case strings.HasPrefix(key, callerID+keySeparator):
		other = key[len(callerID)+len(keySeparator):]
	case strings.HasSuffix(key, keySeparator+callerID):
		other = key[:len(key)-len(callerID)-len(keySeparator)]
	default:
		return "", ErrNotParticipant
	}

	// La clave debe reconstruirse exactamente; descarta claves malformadas.
	derived, err := DeriveKey(callerID, other)
	if err != nil || derived != key {
		return "", ErrNotParticipant
	}
	return other, nil
}
