package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"github.com/prometheus/client_golang/prometheus"
)

// State состояние аудио движка
type State string

const (
	StateUnconfigured State = "unconfigured"
	StateConfigured   State = "configured"
	StatePrepared     State = "prepared"
	StateStreaming    State = "streaming"
	StateSuspended    State = "suspended"
	StateStopped      State = "stopped"
)

const (
	eventConfigure = "configure"
	eventPrepare   = "prepare"
	eventStart     = "start"
	eventSuspend   = "suspend"
	eventResume    = "resume"
	eventStop      = "stop"
	eventReset     = "reset"
)

// EngineConfig параметры создания движка
type EngineConfig struct {
	// Name имя движка в логах и метриках
	Name string
	// Logger логгер, nil означает slog.Default()
	Logger *slog.Logger
	// Registerer реестр метрик, nil отключает регистрацию
	Registerer prometheus.Registerer
}

// DefaultEngineConfig возвращает конфигурацию по умолчанию
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Name: "default",
	}
}

// Engine аудио движок: владеет цепочкой процессоров и конфигурацией,
// управляет потоком драйвера через конечный автомат состояний
//
//	unconfigured -> configured -> prepared -> streaming <-> suspended -> stopped
//
// Reset из любого состояния возвращает движок в unconfigured.
//
// Управляющие методы потокобезопасны. Callback драйвера не берет
// блокировок и не выделяет память: цепочка и рабочий буфер не меняются,
// пока движок подготовлен.
type Engine struct {
	mu sync.Mutex

	driver  Driver
	chain   Chain
	cfg     Configuration
	mode    Mode
	machine *fsm.FSM

	// только для callback'а
	inputBuf   []byte
	inputInfo  StreamInfo
	outputInfo StreamInfo

	panics  atomic.Uint64
	logger  *slog.Logger
	metrics *engineMetrics
}

// NewEngine создает движок поверх драйвера
func NewEngine(driver Driver, config EngineConfig) *Engine {
	if config.Name == "" {
		config.Name = DefaultEngineConfig().Name
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		driver: driver,
		logger: logger.With(
			slog.String("component", "audio_engine"),
			slog.String("engine", config.Name),
			slog.String("driver", driver.Name()),
		),
		metrics: newEngineMetrics(config.Registerer, config.Name),
	}
	e.initStateMachine()
	return e
}

// initStateMachine инициализирует конечный автомат состояний
func (e *Engine) initStateMachine() {
	e.machine = fsm.NewFSM(
		string(StateUnconfigured),
		fsm.Events{
			{Name: eventConfigure, Src: []string{string(StateUnconfigured), string(StatePrepared)}, Dst: string(StateConfigured)},
			{Name: eventPrepare, Src: []string{string(StateConfigured)}, Dst: string(StatePrepared)},
			{Name: eventStart, Src: []string{string(StatePrepared)}, Dst: string(StateStreaming)},
			{Name: eventSuspend, Src: []string{string(StateStreaming)}, Dst: string(StateSuspended)},
			{Name: eventResume, Src: []string{string(StateSuspended)}, Dst: string(StateStreaming)},
			{Name: eventStop, Src: []string{string(StatePrepared), string(StateStreaming), string(StateSuspended)}, Dst: string(StateStopped)},
			{Name: eventReset, Src: []string{
				string(StateConfigured), string(StatePrepared), string(StateStreaming),
				string(StateSuspended), string(StateStopped),
			}, Dst: string(StateUnconfigured)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, ev *fsm.Event) {
				e.metrics.transitions.WithLabelValues(ev.Src, ev.Dst).Inc()
				e.logger.Info("смена состояния движка",
					slog.String("event", ev.Event),
					slog.String("from", ev.Src),
					slog.String("to", ev.Dst))
			},
		},
	)
}

func (e *Engine) fire(event string) error {
	if err := e.machine.Event(context.Background(), event); err != nil {
		return newError(ErrorCodeInvalidState, "",
			fmt.Sprintf("событие %s недопустимо в состоянии %s", event, e.machine.Current()), err)
	}
	return nil
}

func (e *Engine) state() State {
	return State(e.machine.Current())
}

// State возвращает текущее состояние
func (e *Engine) State() State {
	return e.state()
}

// Mode возвращает режим потока, ModeNone если поток не запущен
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Configuration возвращает текущую конфигурацию
func (e *Engine) Configuration() Configuration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// IsConfigured сообщает что конфигурация задана
func (e *Engine) IsConfigured() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.cfg.IsZero()
}

// BufferSize возвращает размер буфера текущей конфигурации
func (e *Engine) BufferSize() BufferSize {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.BufferSize
}

// PanicCount количество паник процессоров, перехваченных в callback'е
func (e *Engine) PanicCount() uint64 {
	return e.panics.Load()
}

// Driver возвращает драйвер движка
func (e *Engine) Driver() Driver {
	return e.driver
}

// SetConfiguration задает конфигурацию. В состоянии prepared цепочка
// очищается и движок возвращается в configured.
func (e *Engine) SetConfiguration(cfg Configuration) error {
	if err := cfg.Validate(); err != nil {
		return newError(ErrorCodeConfiguration, "", "некорректная конфигурация", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setConfigurationLocked(cfg)
}

func (e *Engine) setConfigurationLocked(cfg Configuration) error {
	switch e.state() {
	case StateConfigured:
	case StateUnconfigured:
		if err := e.fire(eventConfigure); err != nil {
			return err
		}
	case StatePrepared:
		if err := e.chain.cleanUp(e.logger); err != nil {
			e.logger.Warn("ошибки очистки цепочки при смене конфигурации", slog.String("error", err.Error()))
		}
		e.inputBuf = nil
		if err := e.fire(eventConfigure); err != nil {
			return err
		}
	case StateStopped:
		return ErrEngineStopped
	default:
		return newError(ErrorCodeInvalidState, "", "нельзя менять конфигурацию во время потока", nil)
	}

	e.cfg = cfg
	e.logger.Info("конфигурация установлена", slog.String("config", cfg.String()))
	return nil
}

// SetDefaultConfiguration применяет конфигурацию по умолчанию: устройства
// драйвера по умолчанию и параметры, согласованные с цепочкой.
func (e *Engine) SetDefaultConfiguration() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setDefaultConfigurationLocked()
}

func (e *Engine) setDefaultConfigurationLocked() error {
	cfg, err := e.defaultConfiguration()
	if err != nil {
		return err
	}
	return e.setConfigurationLocked(cfg)
}

func (e *Engine) defaultConfiguration() (Configuration, error) {
	caps, err := e.chain.Negotiate()
	if err != nil {
		return Configuration{}, err
	}

	in, out, err := e.driver.DefaultDevices()
	if err != nil {
		return Configuration{}, newError(ErrorCodeDevice, "", "не удалось получить устройства по умолчанию", err)
	}

	cfg := Configuration{
		InputDevice:    in.ID,
		OutputDevice:   out.ID,
		InputChannels:  defaultChannels(in.MaxInputChannels),
		OutputChannels: defaultChannels(out.MaxOutputChannels),
		BufferSize:     caps.BufferSize,
		Format:         DefaultFormat,
	}
	if !caps.SupportsFormat(cfg.Format) {
		cfg.Format = caps.Formats[0]
	}

	rates := append(slices.Clone(PreferredSampleRates), out.PreferredSampleRate, in.PreferredSampleRate)
	for _, rate := range rates {
		if rate != 0 && caps.SupportsSampleRate(rate) {
			cfg.SampleRate = rate
			break
		}
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = caps.SampleRates[0]
	}
	return cfg, nil
}

func defaultChannels(available uint16) uint16 {
	if available == 0 || available > DefaultChannels {
		return DefaultChannels
	}
	return available
}

// Prepare настраивает процессоры цепочки и выделяет рабочий буфер
func (e *Engine) Prepare() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prepareLocked()
}

func (e *Engine) prepareLocked() error {
	switch e.state() {
	case StateConfigured:
	case StatePrepared:
		return nil
	case StateStopped:
		return ErrEngineStopped
	case StateUnconfigured:
		return newError(ErrorCodeInvalidState, "", "конфигурация не задана", nil)
	default:
		return newError(ErrorCodeInvalidState, "", "поток уже запущен", nil)
	}

	if err := e.chain.checkConfiguration(e.cfg); err != nil {
		return err
	}
	if err := e.chain.configure(e.cfg, e.logger); err != nil {
		e.logger.Error("ошибка подготовки цепочки", slog.String("error", err.Error()))
		return err
	}

	e.inputBuf = make([]byte, e.cfg.InputBufferBytes())
	return e.fire(eventPrepare)
}

// StartRecording запускает поток в режиме записи
func (e *Engine) StartRecording() error { return e.start(ModeRecording) }

// StartPlayback запускает поток в режиме воспроизведения
func (e *Engine) StartPlayback() error { return e.start(ModePlayback) }

// StartDuplex запускает поток в режиме записи и воспроизведения
func (e *Engine) StartDuplex() error { return e.start(ModeDuplex) }

// start запускает поток. Если конфигурация не задана, применяется
// конфигурация по умолчанию, если цепочка не подготовлена, она готовится.
func (e *Engine) start(mode Mode) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state() {
	case StateStopped:
		return ErrEngineStopped
	case StateStreaming:
		if e.mode == mode {
			return nil
		}
		return newError(ErrorCodeInvalidState, "",
			fmt.Sprintf("поток уже запущен в режиме %s", e.mode), nil)
	case StateSuspended:
		return newError(ErrorCodeInvalidState, "", "поток приостановлен, используйте Resume", nil)
	case StateUnconfigured:
		if err := e.setDefaultConfigurationLocked(); err != nil {
			return err
		}
		e.logger.Info("применена конфигурация по умолчанию")
	}

	if err := e.prepareLocked(); err != nil {
		return err
	}

	params := StreamParams{
		Mode:         mode,
		SampleRate:   e.cfg.SampleRate,
		Format:       e.cfg.Format,
		BufferFrames: uint32(e.cfg.BufferSize),
	}
	if mode.HasInput() {
		params.InputDevice = e.cfg.InputDevice
		params.InputChannels = e.cfg.InputChannels
	}
	if mode.HasOutput() {
		params.OutputDevice = e.cfg.OutputDevice
		params.OutputChannels = e.cfg.OutputChannels
	}

	frames, err := e.driver.Open(params, e.callback)
	if err != nil {
		return newError(ErrorCodeDevice, "", "не удалось открыть поток", err)
	}
	if frames != params.BufferFrames {
		e.logger.Warn("драйвер изменил размер буфера",
			slog.Uint64("requested", uint64(params.BufferFrames)),
			slog.Uint64("actual", uint64(frames)))
		if need := int(frames) * e.cfg.InputFrameBytes(); need > len(e.inputBuf) {
			e.inputBuf = make([]byte, need)
		}
	}

	e.mode = mode
	if err := e.driver.Start(); err != nil {
		e.mode = ModeNone
		if closeErr := e.driver.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return newError(ErrorCodeDevice, "", "не удалось запустить поток", err)
	}

	if err := e.fire(eventStart); err != nil {
		return err
	}
	e.logger.Info("поток запущен",
		slog.String("mode", mode.String()),
		slog.Uint64("frames", uint64(frames)))
	return nil
}

// Suspend приостанавливает ввод-вывод без перенастройки цепочки
func (e *Engine) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state() != StateStreaming {
		return newError(ErrorCodeInvalidState, "", "поток не запущен", nil)
	}
	if err := e.driver.Stop(); err != nil {
		return newError(ErrorCodeDevice, "", "не удалось приостановить поток", err)
	}
	return e.fire(eventSuspend)
}

// Resume возобновляет приостановленный поток
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state() != StateSuspended {
		return newError(ErrorCodeInvalidState, "", "поток не приостановлен", nil)
	}
	if err := e.driver.Start(); err != nil {
		return newError(ErrorCodeDevice, "", "не удалось возобновить поток", err)
	}
	return e.fire(eventResume)
}

// Stop останавливает и закрывает поток драйвера и очищает цепочку.
// Состояние stopped конечное: дальше нужен Reset.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state() {
	case StateStopped:
		return nil
	case StateUnconfigured, StateConfigured:
		return newError(ErrorCodeInvalidState, "", "движок не подготовлен", nil)
	}

	err := e.teardownLocked()
	if fireErr := e.fire(eventStop); fireErr != nil {
		return errors.Join(err, fireErr)
	}
	return err
}

// Reset останавливает движок и сбрасывает конфигурацию
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	switch e.state() {
	case StatePrepared, StateStreaming, StateSuspended:
		err = e.teardownLocked()
	}

	e.cfg = Configuration{}
	e.inputBuf = nil
	if e.state() != StateUnconfigured {
		if fireErr := e.fire(eventReset); fireErr != nil {
			err = errors.Join(err, fireErr)
		}
	}
	return err
}

// teardownLocked закрывает поток и очищает цепочку. Ошибки собираются,
// но не прерывают остальные шаги.
func (e *Engine) teardownLocked() error {
	var errs []error
	if e.driver.IsRunning() {
		if err := e.driver.Stop(); err != nil {
			errs = append(errs, newError(ErrorCodeDevice, "", "ошибка остановки потока", err))
		}
	}
	if e.driver.IsOpen() {
		if err := e.driver.Close(); err != nil {
			errs = append(errs, newError(ErrorCodeDevice, "", "ошибка закрытия потока", err))
		}
	}
	if err := e.chain.cleanUp(e.logger); err != nil {
		errs = append(errs, err)
	}
	e.mode = ModeNone
	return errors.Join(errs...)
}

// chainMutableLocked проверяет что цепочку можно менять
func (e *Engine) chainMutableLocked() error {
	switch e.state() {
	case StateUnconfigured, StateConfigured, StateStopped:
		return nil
	default:
		return ErrChainLocked
	}
}

// AddProcessor добавляет процессор в конец цепочки
func (e *Engine) AddProcessor(p Processor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.chainMutableLocked(); err != nil {
		return err
	}
	if err := e.chain.Add(p); err != nil {
		return err
	}
	e.logger.Debug("процессор добавлен", slog.String("processor", p.Name()))
	return nil
}

// RemoveProcessor удаляет процессор по ссылке
func (e *Engine) RemoveProcessor(p Processor) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.chainMutableLocked(); err != nil {
		return err
	}
	return e.chain.Remove(p)
}

// RemoveProcessorByName удаляет процессор по имени
func (e *Engine) RemoveProcessorByName(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.chainMutableLocked(); err != nil {
		return err
	}
	return e.chain.RemoveByName(name)
}

// ClearProcessors удаляет все процессоры. Перед следующим стартом
// цепочка снова пройдет подготовку.
func (e *Engine) ClearProcessors() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.chainMutableLocked(); err != nil {
		return err
	}
	e.chain.Clear()
	e.inputBuf = nil
	return nil
}

// HasProcessor проверяет наличие процессора по ссылке
func (e *Engine) HasProcessor(p Processor) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chain.Has(p)
}

// HasProcessorByName проверяет наличие процессора по имени
func (e *Engine) HasProcessorByName(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chain.HasName(name)
}

// ProcessorNames имена процессоров в порядке обработки захвата
func (e *Engine) ProcessorNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chain.Names()
}

// Negotiate согласует параметры текущей цепочки
func (e *Engine) Negotiate() (Capabilities, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chain.Negotiate()
}

// WriteProcessorOrder печатает порядок обработки в обоих направлениях
func (e *Engine) WriteProcessorOrder(w io.Writer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chain.WriteOrder(w)
}

// callback маршрутизирует вызов драйвера в цепочку. Вход копируется в
// рабочий буфер один раз и проходит цепочку в прямом порядке, буфер
// драйвера не изменяется. Выход обрабатывается на месте в обратном порядке.
func (e *Engine) callback(output, input []byte, frames uint32, streamTime time.Duration, status StreamStatus) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.panics.Add(1)
			e.metrics.processorPanics.Inc()
			clear(output)
		}
		e.metrics.callbacks.Inc()
		e.metrics.callbackDuration.Observe(time.Since(started).Seconds())
	}()

	if status != 0 {
		e.recordStatus(status)
	}

	if len(input) > 0 && e.mode.HasInput() {
		n := copy(e.inputBuf, input)
		e.inputInfo.Frames = frames
		e.inputInfo.StreamTime = streamTime
		e.inputInfo.Status = status
		e.inputInfo.MaxBufferSize = len(e.inputBuf)
		e.chain.processInput(e.inputBuf, n, &e.inputInfo)
	}

	if len(output) > 0 && e.mode.HasOutput() {
		e.outputInfo.Frames = frames
		e.outputInfo.StreamTime = streamTime
		e.outputInfo.Status = status
		e.outputInfo.MaxBufferSize = len(output)
		n := e.chain.processOutput(output, len(output), &e.outputInfo)
		// недописанный хвост заполняется тишиной
		clear(output[n:])
	}
}

func (e *Engine) recordStatus(status StreamStatus) {
	if status&StatusInputOverflow != 0 {
		e.metrics.inputOverflows.Inc()
	}
	if status&StatusOutputUnderflow != 0 {
		e.metrics.outputUnderflows.Inc()
	}
	if e.logger.Enabled(context.Background(), slog.LevelDebug) {
		e.logger.Debug("статус потока драйвера",
			slog.Bool("input_overflow", status&StatusInputOverflow != 0),
			slog.Bool("output_underflow", status&StatusOutputUnderflow != 0))
	}
}
