// Package relayhttp реализует same-origin прокси загрузки: браузер шлёт сюда части файла,
// а прокси пересылает их в сессию провайдера с токеном пользователя, который хранится на сервере.
//   - POST /upload (JSON, action=initiate) — открывает сессию, возвращает {uploadUrl}.
//   - POST /upload (multipart, action=upload_chunk) — пересылает одну часть.
//   - POST /upload (JSON, action=status) — подтверждённый провайдером офсет.
//   - GET /health, GET /metrics.
package relayhttp
