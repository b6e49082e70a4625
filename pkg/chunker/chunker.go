// Package chunker нарезает файл известного размера на последовательные байтовые диапазоны.
package chunker

import (
	"fmt"
	"iter"
)

// DefaultChunkSize: размер части по умолчанию (2 MiB, кратен 256 KiB, как требует провайдер).
const DefaultChunkSize int64 = 2 << 20

// Range описывает полуинтервал [Start, Start+Length) исходного файла.
type Range struct {
	Start  int64
	Length int64
}

// End возвращает первый байт за пределами диапазона.
func (r Range) End() int64 {
	return r.Start + r.Length
}

// Validate проверяет входные параметры нарезки.
func Validate(size, chunkSize int64) error {
	if size < 0 {
		return fmt.Errorf("size must be >= 0, got %d", size)
	}
	if chunkSize <= 0 {
		return fmt.Errorf("chunk size must be > 0, got %d", chunkSize)
	}
	return nil
}

// Count возвращает число диапазонов: ceil(size/chunkSize), но не меньше одного.
// Пустой файл всё равно отправляется одним запросом нулевой длины.
func Count(size, chunkSize int64) int {
	if Validate(size, chunkSize) != nil {
		return 0
	}
	if size == 0 {
		return 1
	}
	n := size / chunkSize
	if size%chunkSize != 0 {
		n++
	}
	return int(n)
}

// At возвращает диапазон, начинающийся с offset.
func At(offset, size, chunkSize int64) Range {
	length := min(chunkSize, size-offset)
	if length < 0 {
		length = 0
	}
	return Range{Start: offset, Length: length}
}

// Ranges лениво перечисляет диапазоны, покрывающие [0, size) ровно один раз.
// Повторный вызов с теми же аргументами даёт ту же последовательность.
func Ranges(size, chunkSize int64) iter.Seq[Range] {
	return func(yield func(Range) bool) {
		if Validate(size, chunkSize) != nil {
			return
		}
		if size == 0 {
			yield(Range{})
			return
		}
		for off := int64(0); off < size; off += chunkSize {
			if !yield(At(off, size, chunkSize)) {
				return
			}
		}
	}
}
