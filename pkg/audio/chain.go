package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"slices"
)

// Chain упорядоченная цепочка процессоров с уникальными именами.
// Порядок добавления совпадает с порядком обработки захвата,
// воспроизведение проходит цепочку в обратном порядке.
//
// Chain не потокобезопасна, синхронизацию обеспечивает Engine.
type Chain struct {
	processors []Processor
}

// Add добавляет процессор в конец цепочки
func (c *Chain) Add(p Processor) error {
	if p == nil {
		return newError(ErrorCodeNotFound, "", "процессор nil", nil)
	}
	if c.HasName(p.Name()) {
		return newError(ErrorCodeDuplicateName, p.Name(), ErrDuplicateName.Message, nil)
	}
	c.processors = append(c.processors, p)
	return nil
}

// Remove удаляет процессор по ссылке
func (c *Chain) Remove(p Processor) error {
	if i := c.indexOf(p); i >= 0 {
		c.processors = slices.Delete(c.processors, i, i+1)
		return nil
	}
	name := ""
	if p != nil {
		name = p.Name()
	}
	return newError(ErrorCodeNotFound, name, ErrNotFound.Message, nil)
}

// RemoveByName удаляет процессор по имени
func (c *Chain) RemoveByName(name string) error {
	i := c.index(name)
	if i < 0 {
		return newError(ErrorCodeNotFound, name, ErrNotFound.Message, nil)
	}
	c.processors = slices.Delete(c.processors, i, i+1)
	return nil
}

// Clear удаляет все процессоры
func (c *Chain) Clear() {
	clear(c.processors)
	c.processors = c.processors[:0]
}

// Has проверяет наличие процессора по ссылке
func (c *Chain) Has(p Processor) bool {
	return c.indexOf(p) >= 0
}

// indexOf ищет процессор по ссылке. Несравнимые значения (структуры
// со срезами, переданные по значению) ищутся по типу и имени,
// имя в цепочке уникально.
func (c *Chain) indexOf(p Processor) int {
	if p == nil {
		return -1
	}
	typ := reflect.TypeOf(p)
	canCompare := typ.Comparable()
	for i, existing := range c.processors {
		if reflect.TypeOf(existing) != typ {
			continue
		}
		if canCompare && existing == p {
			return i
		}
		if !canCompare && existing.Name() == p.Name() {
			return i
		}
	}
	return -1
}

// HasName проверяет наличие процессора по имени
func (c *Chain) HasName(name string) bool {
	return c.index(name) >= 0
}

// Get возвращает процессор по имени
func (c *Chain) Get(name string) (Processor, bool) {
	i := c.index(name)
	if i < 0 {
		return nil, false
	}
	return c.processors[i], true
}

// Len количество процессоров
func (c *Chain) Len() int {
	return len(c.processors)
}

// Names имена процессоров в порядке обработки захвата
func (c *Chain) Names() []string {
	names := make([]string, len(c.processors))
	for i, p := range c.processors {
		names[i] = p.Name()
	}
	return names
}

// WriteOrder печатает порядок обработки для обоих направлений
func (c *Chain) WriteOrder(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "Порядок обработки захвата:"); err != nil {
		return err
	}
	for i, p := range c.processors {
		if _, err := fmt.Fprintf(w, "  %d. %s\n", i+1, p.Name()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, "Порядок обработки воспроизведения:"); err != nil {
		return err
	}
	for i := len(c.processors) - 1; i >= 0; i-- {
		if _, err := fmt.Fprintf(w, "  %d. %s\n", len(c.processors)-i, c.processors[i].Name()); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) index(name string) int {
	for i, p := range c.processors {
		if p.Name() == name {
			return i
		}
	}
	return -1
}

// Capabilities результат согласования параметров цепочки.
// nil в Formats или SampleRates означает что подходит любое значение.
type Capabilities struct {
	Formats     []SampleFormat
	SampleRates []uint32
	BufferSize  BufferSize
}

// SupportsFormat проверяет что формат допустим для всей цепочки
func (c Capabilities) SupportsFormat(f SampleFormat) bool {
	return c.Formats == nil || slices.Contains(c.Formats, f)
}

// SupportsSampleRate проверяет что частота допустима для всей цепочки
func (c Capabilities) SupportsSampleRate(rate uint32) bool {
	return c.SampleRates == nil || slices.Contains(c.SampleRates, rate)
}

// Negotiate пересекает форматы и частоты всех процессоров и выбирает
// размер буфера с наибольшим приоритетом, приемлемый для каждого.
func (c *Chain) Negotiate() (Capabilities, error) {
	var caps Capabilities

	for _, p := range c.processors {
		caps.Formats = intersect(caps.Formats, p.SupportedFormats())
		if caps.Formats != nil && len(caps.Formats) == 0 {
			return caps, newError(ErrorCodeConfiguration, p.Name(), "нет общего формата сэмплов с цепочкой", nil)
		}
		caps.SampleRates = intersect(caps.SampleRates, p.SupportedSampleRates())
		if caps.SampleRates != nil && len(caps.SampleRates) == 0 {
			return caps, newError(ErrorCodeConfiguration, p.Name(), "нет общей частоты дискретизации с цепочкой", nil)
		}
	}

	candidates := make([]BufferSize, 0, len(ValidBufferSizes)+1)
	for _, p := range c.processors {
		for _, size := range p.PreferredBufferSizes() {
			if size != BufferSizeAny {
				candidates = append(candidates, size)
			}
		}
	}
	candidates = append(candidates, DefaultBufferSize)
	candidates = append(candidates, ValidBufferSizes...)

	for _, size := range candidates {
		if size.IsValid() && c.acceptsBufferSize(size) {
			caps.BufferSize = size
			return caps, nil
		}
	}
	return caps, newError(ErrorCodeConfiguration, "", "нет размера буфера, общего для всех процессоров", nil)
}

func (c *Chain) acceptsBufferSize(size BufferSize) bool {
	for _, p := range c.processors {
		prefs := p.PreferredBufferSizes()
		if prefs == nil {
			continue
		}
		if !slices.Contains(prefs, size) && !slices.Contains(prefs, BufferSizeAny) {
			return false
		}
	}
	return true
}

// intersect пересекает списки, nil означает "любое значение"
func intersect[T comparable](current, next []T) []T {
	if next == nil {
		return current
	}
	if current == nil {
		return slices.Clone(next)
	}
	out := make([]T, 0, len(current))
	for _, v := range current {
		if slices.Contains(next, v) {
			out = append(out, v)
		}
	}
	return out
}

// checkConfiguration проверяет что каждый процессор принимает формат и частоту
func (c *Chain) checkConfiguration(cfg Configuration) error {
	for _, p := range c.processors {
		if formats := p.SupportedFormats(); formats != nil && !slices.Contains(formats, cfg.Format) {
			return newError(ErrorCodeConfiguration, p.Name(),
				fmt.Sprintf("формат %s не поддерживается", cfg.Format), nil)
		}
		if rates := p.SupportedSampleRates(); rates != nil && !slices.Contains(rates, cfg.SampleRate) {
			return newError(ErrorCodeConfiguration, p.Name(),
				fmt.Sprintf("частота %d Гц не поддерживается", cfg.SampleRate), nil)
		}
	}
	return nil
}

// configure настраивает процессоры по порядку. При ошибке уже
// настроенные процессоры очищаются, ошибка содержит имя процессора.
func (c *Chain) configure(cfg Configuration, logger *slog.Logger) error {
	for i, p := range c.processors {
		if err := p.Configure(cfg); err != nil {
			cleanupErr := cleanUpAll(c.processors[:i], logger)
			cfgErr := newError(ErrorCodeConfiguration, p.Name(), "ошибка настройки процессора", err)
			if cleanupErr != nil {
				return errors.Join(cfgErr, cleanupErr)
			}
			return cfgErr
		}
		logger.Debug("процессор настроен", slog.String("processor", p.Name()))
	}
	return nil
}

// cleanUp очищает все процессоры. Ошибка одного не прерывает остальных.
func (c *Chain) cleanUp(logger *slog.Logger) error {
	return cleanUpAll(c.processors, logger)
}

func cleanUpAll(processors []Processor, logger *slog.Logger) error {
	var errs []error
	for _, p := range processors {
		if err := p.CleanUp(); err != nil {
			logger.Error("ошибка очистки процессора",
				slog.String("processor", p.Name()),
				slog.String("error", err.Error()))
			errs = append(errs, newError(ErrorCodeCleanup, p.Name(), "ошибка очистки процессора", err))
		}
	}
	return errors.Join(errs...)
}

// processInput прогоняет буфер через цепочку в прямом порядке
func (c *Chain) processInput(buf []byte, n int, info *StreamInfo) int {
	for _, p := range c.processors {
		n = clampLen(p.ProcessInput(buf, n, info), len(buf))
	}
	return n
}

// processOutput прогоняет буфер через цепочку в обратном порядке
func (c *Chain) processOutput(buf []byte, n int, info *StreamInfo) int {
	for i := len(c.processors) - 1; i >= 0; i-- {
		n = clampLen(c.processors[i].ProcessOutput(buf, n, info), len(buf))
	}
	return n
}

func clampLen(n, limit int) int {
	if n < 0 {
		return 0
	}
	if n > limit {
		return limit
	}
	return n
}
