package identity

import (
	"context"

	"scoutlink/internal/domain"
)

// MockDirectory permite tests y despliegues sin el proveedor de identidad.
// Si Profiles no contiene el id, devuelve Err; con Err nil resuelve un
// perfil minimo con el propio id como nombre.
type MockDirectory struct {
	Profiles map[string]domain.Profile
	Err      error
}

func (m *MockDirectory) Lookup(_ context.Context, userID string) (domain.Profile, error) {
	if m.Profiles != nil {
		if p, ok := m.Profiles[userID]; ok {
			return p, nil
		}
	}
	if m.Err != nil {
		return domain.Profile{}, m.Err
	}
	return domain.Profile{ID: userID, DisplayName: userID}, nil
}
