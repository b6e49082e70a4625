package uploadclient

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

const (
	progressBarWidth     = 32
	progressRenderPeriod = 120 * time.Millisecond
)

// ProgressBar рисует ASCII-индикатор выполнения загрузки и реализует Observer.
type ProgressBar struct {
	out           io.Writer
	prefix        string
	total         int64
	current       int64
	lastRender    time.Time
	lastLineWidth int
	finished      bool
	mu            sync.Mutex
}

// NewProgressBar создаёт индикатор, пишущий в out. Пустой prefix заменяется именем файла в OnStart.
func NewProgressBar(out io.Writer, prefix string) *ProgressBar {
	return &ProgressBar{out: out, prefix: prefix}
}

var _ Observer = (*ProgressBar)(nil)

func (p *ProgressBar) OnStart(src Source) {
	p.mu.Lock()
	p.total = src.Size
	if p.prefix == "" {
		p.prefix = "Uploading " + src.Name
	}
	p.mu.Unlock()
	p.render(true, "")
}

func (p *ProgressBar) OnProgress(pr Progress) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.current = pr.Offset
	p.total = pr.Size
	p.mu.Unlock()
	p.render(false, "")
}

func (p *ProgressBar) OnComplete(uploadproto.FileMetadata) {
	p.mu.Lock()
	p.current = p.total
	p.mu.Unlock()
	p.complete(true, nil)
}

func (p *ProgressBar) OnError(err error) {
	p.complete(false, err)
}

func (p *ProgressBar) render(force bool, suffix string) {
	p.mu.Lock()
	if p.finished && !force {
		p.mu.Unlock()
		return
	}
	now := time.Now()
	if !force && now.Sub(p.lastRender) < progressRenderPeriod {
		p.mu.Unlock()
		return
	}

	line := p.lineLocked()
	prevWidth := p.lastLineWidth
	p.lastLineWidth = len(line) + len(suffix)
	p.lastRender = now
	p.mu.Unlock()

	padding := ""
	if prevWidth > len(line)+len(suffix) {
		padding = strings.Repeat(" ", prevWidth-len(line)-len(suffix))
	}
	fmt.Fprintf(p.out, "\r%s%s%s", line, suffix, padding)
}

func (p *ProgressBar) lineLocked() string {
	var builder strings.Builder
	builder.Grow(len(p.prefix) + 64)
	builder.WriteString(p.prefix)
	builder.WriteByte(' ')

	ratio := Progress{Offset: p.current, Size: p.total}.Fraction()
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio*float64(progressBarWidth) + 0.5)
	if filled > progressBarWidth {
		filled = progressBarWidth
	}
	builder.WriteByte('[')
	builder.WriteString(strings.Repeat("=", filled))
	builder.WriteString(strings.Repeat(" ", progressBarWidth-filled))
	builder.WriteString("] ")
	builder.WriteString(fmt.Sprintf("%3d%% ", int(ratio*100+0.5)))
	builder.WriteString(humanBytes(p.current))
	builder.WriteByte('/')
	builder.WriteString(humanBytes(p.total))

	return builder.String()
}

func (p *ProgressBar) complete(success bool, err error) {
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	line := p.lineLocked()
	prevWidth := p.lastLineWidth
	p.lastLineWidth = len(line)
	p.mu.Unlock()

	suffix := " ✓"
	if !success {
		if err != nil {
			suffix = fmt.Sprintf(" ✗ %v", err)
		} else {
			suffix = " ✗"
		}
	}

	padding := ""
	if prevWidth > len(line)+len(suffix) {
		padding = strings.Repeat(" ", prevWidth-len(line)-len(suffix))
	}

	fmt.Fprintf(p.out, "\r%s%s%s\n", line, suffix, padding)
}

func humanBytes(v int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	value := float64(v)
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d %s", v, units[unit])
	}
	return fmt.Sprintf("%.1f %s", value, units[unit])
}
