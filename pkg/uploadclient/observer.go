package uploadclient

import "github.com/sir_venger/drive_relay/pkg/uploadproto"

// Observer получает сигналы одной загрузки. Сам логики загрузки не содержит.
type Observer interface {
	OnStart(src Source)
	OnProgress(p Progress)
	OnComplete(file uploadproto.FileMetadata)
	OnError(err error)
}

// Progress: подтверждённый провайдером офсет относительно размера файла.
type Progress struct {
	Offset int64
	Size   int64
}

// Fraction возвращает долю в [0, 1]. Пустой файл считается загруженным целиком.
func (p Progress) Fraction() float64 {
	if p.Size <= 0 {
		return 1
	}
	return float64(p.Offset) / float64(p.Size)
}

// ObserverFuncs превращает набор необязательных функций в Observer.
type ObserverFuncs struct {
	Start    func(Source)
	Progress func(Progress)
	Complete func(uploadproto.FileMetadata)
	Error    func(error)
}

func (f ObserverFuncs) OnStart(src Source) {
	if f.Start != nil {
		f.Start(src)
	}
}

func (f ObserverFuncs) OnProgress(p Progress) {
	if f.Progress != nil {
		f.Progress(p)
	}
}

func (f ObserverFuncs) OnComplete(file uploadproto.FileMetadata) {
	if f.Complete != nil {
		f.Complete(file)
	}
}

func (f ObserverFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}
