package models

import "time"

// UploadSession связывает выданный браузеру идентификатор с URL сессии провайдера.
// ProviderURL наружу не отдаётся.
type UploadSession struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProviderURL string    `json:"provider_url"`
	Name        string    `json:"name"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	ParentID    string    `json:"parent_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Credential: сохранённый токен провайдера для пользователя.
type Credential struct {
	UserID      string
	AccessToken string
	ExpiresAt   time.Time
}

// Valid сообщает, можно ли использовать токен в момент now.
func (c Credential) Valid(now time.Time) bool {
	if c.AccessToken == "" {
		return false
	}
	return c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt)
}
