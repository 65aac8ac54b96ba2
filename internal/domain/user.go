package domain

// Profile son los datos de presentacion que expone el proveedor de
// identidad externo. El core los trata como inmutables durante un request.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}
