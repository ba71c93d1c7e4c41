// Package driver фабрика аудио драйверов по имени
package driver

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/arzzra/voice_engine/pkg/audio"
	"github.com/arzzra/voice_engine/pkg/driver/virtual"
)

// Options общие параметры создания драйвера
type Options struct {
	Logger *slog.Logger
	// Virtual параметры программного драйвера, Logger берется из Options
	Virtual virtual.Config
}

type constructor func(opts Options) (audio.Driver, error)

var constructors = map[string]constructor{
	virtual.Name: func(opts Options) (audio.Driver, error) {
		cfg := opts.Virtual
		cfg.Logger = opts.Logger
		return virtual.New(cfg), nil
	},
}

// New создает драйвер по имени
func New(name string, opts Options) (audio.Driver, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("неизвестный аудио драйвер %q (доступны %v)", name, Names())
	}
	return ctor(opts)
}

// Names возвращает имена доступных драйверов
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultName аппаратный драйвер, если он собран, иначе программный
func DefaultName() string {
	if slices.Contains(Names(), hardwareName) {
		return hardwareName
	}
	return virtual.Name
}

// Release освобождает ресурсы драйвера, которые живут дольше потока
func Release(d audio.Driver) error {
	if r, ok := d.(interface{ Release() error }); ok {
		return r.Release()
	}
	return nil
}
