// Package uploadproto описывает протокол возобновляемой загрузки: поля прокси-эндпоинта
// /upload, формат Content-Range/Range и закрытый вариант ответа провайдера на часть.
package uploadproto

import "net/http"

// Параметры протокола между клиентом и прокси.
const (
	UploadPath = "/upload"

	ActionInitiate    = "initiate"
	ActionUploadChunk = "upload_chunk"
	ActionStatus      = "status"

	FieldAction       = "action"
	FieldChunk        = "chunk"
	FieldUploadURL    = "uploadUrl"
	FieldContentRange = "contentRange"
)

// Заголовки возобновляемой сессии провайдера.
const (
	HeaderContentRange      = "Content-Range"
	HeaderRange             = "Range"
	HeaderUploadContentType = "X-Upload-Content-Type"
	HeaderUploadLength      = "X-Upload-Content-Length"
	HeaderLocation          = "Location"
)

// StatusResumeIncomplete (308 Resume Incomplete): провайдер ждёт следующие байты.
const StatusResumeIncomplete = http.StatusPermanentRedirect

// InitiateRequest: JSON-тело action=initiate.
type InitiateRequest struct {
	Action   string `json:"action"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	ParentID string `json:"parentId,omitempty"`
}

// InitiateResponse возвращает непрозрачный идентификатор сессии.
type InitiateResponse struct {
	UploadURL string `json:"uploadUrl"`
}

// StatusRequest: JSON-тело action=status.
type StatusRequest struct {
	Action    string `json:"action"`
	UploadURL string `json:"uploadUrl"`
}

// ChunkResponse: ответ прокси на upload_chunk и status.
type ChunkResponse struct {
	Status   int           `json:"status"`
	Success  bool          `json:"success,omitempty"`
	Received *int64        `json:"received,omitempty"`
	File     *FileMetadata `json:"file,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// ErrorResponse: тело любой ошибки прокси.
type ErrorResponse struct {
	Message string `json:"message"`
}

// FileMetadata: метаданные созданного провайдером файла.
type FileMetadata struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType,omitempty"`
	Size     int64    `json:"size,string,omitempty"`
	Parents  []string `json:"parents,omitempty"`
	SHA256   string   `json:"sha256Checksum,omitempty"`
}

// Excerpt обрезает тело ответа для сообщений об ошибках.
func Excerpt(body []byte, limit int) string {
	if limit <= 0 || len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}

// ExcerptLimit: длина фрагмента тела, попадающего в сообщения об ошибках.
const ExcerptLimit = 256
