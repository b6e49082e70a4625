// Package drivehttp реализует локальный эмулятор облачного хранилища с протоколом
// возобновляемой загрузки в стиле Google Drive поверх локального диска. Эндпоинты:
//   - POST /upload/drive/v3/files?uploadType=resumable — открывает сессию, URL сессии в Location.
//   - PUT /upload/drive/v3/files?upload_id={id} — принимает диапазон байт по Content-Range;
//     308 + Range для незавершённой загрузки, 201 + метаданные файла по последнему байту.
//     "Content-Range: bytes */{total}" — запрос статуса.
//   - GET /drive/v3/files/{fileID}?alt=media — отдаёт собранный файл.
//   - POST /admin/gc — ручной сбор заброшенных сессий.
//   - GET /health — агрегированные метрики по каталогу данных.
package drivehttp
