package uploadproto

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Outcome — закрытый вариант результата отправки части (Continue, Complete или Failed).
type Outcome interface {
	isOutcome()
}

// Continue: провайдер ответил 308 и ждёт следующие байты.
// Received: подтверждённое провайдером число байт или -1, если он его не сообщил.
type Continue struct {
	Received int64
}

// Complete: провайдер собрал файл и вернул его метаданные.
type Complete struct {
	Status int
	File   FileMetadata
}

// Failed: любой другой ответ провайдера.
type Failed struct {
	Status int
	Body   string
}

func (Continue) isOutcome() {}
func (Complete) isOutcome() {}
func (Failed) isOutcome()   {}

// Classify переводит сырой ответ провайдера в Outcome.
// Любой 2xx считается завершением загрузки.
func Classify(status int, rangeHeader string, body []byte) Outcome {
	switch {
	case status == StatusResumeIncomplete:
		received, err := ParseReceived(rangeHeader)
		if err != nil {
			return Failed{Status: status, Body: err.Error()}
		}
		return Continue{Received: received}
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		var file FileMetadata
		if len(body) > 0 {
			if err := json.Unmarshal(body, &file); err != nil {
				return Failed{Status: status, Body: fmt.Sprintf("decode file metadata: %v", err)}
			}
		}
		return Complete{Status: status, File: file}
	default:
		return Failed{Status: status, Body: Excerpt(body, ExcerptLimit)}
	}
}

// ToResponse переводит Outcome в тело ответа прокси и HTTP-код этого ответа.
func ToResponse(o Outcome) (int, ChunkResponse) {
	switch v := o.(type) {
	case Continue:
		resp := ChunkResponse{Status: StatusResumeIncomplete}
		if v.Received >= 0 {
			received := v.Received
			resp.Received = &received
		}
		return http.StatusOK, resp
	case Complete:
		file := v.File
		status := v.Status
		if status == 0 {
			status = http.StatusOK
		}
		return http.StatusOK, ChunkResponse{Status: status, Success: true, File: &file}
	case Failed:
		code := v.Status
		if code < http.StatusBadRequest {
			code = http.StatusBadGateway
		}
		return code, ChunkResponse{Status: v.Status, Message: v.Body}
	default:
		return http.StatusInternalServerError, ChunkResponse{Status: http.StatusInternalServerError, Message: "unknown outcome"}
	}
}

// FromResponse восстанавливает Outcome из ответа прокси.
func FromResponse(httpStatus int, resp ChunkResponse, raw []byte) Outcome {
	if httpStatus != http.StatusOK {
		body := resp.Message
		if body == "" {
			body = Excerpt(raw, ExcerptLimit)
		}
		return Failed{Status: httpStatus, Body: body}
	}

	switch {
	case resp.Status == StatusResumeIncomplete:
		received := int64(-1)
		if resp.Received != nil {
			received = *resp.Received
		}
		return Continue{Received: received}
	case resp.Success && resp.Status >= http.StatusOK && resp.Status < http.StatusMultipleChoices:
		var file FileMetadata
		if resp.File != nil {
			file = *resp.File
		}
		return Complete{Status: resp.Status, File: file}
	default:
		return Failed{Status: resp.Status, Body: fmt.Sprintf("unexpected upload status: %s", Excerpt(raw, ExcerptLimit))}
	}
}
