package audio

import (
	"errors"
	"sync"
	"time"
)

// fakeDriver драйвер, callback которого тесты вызывают вручную
type fakeDriver struct {
	mu       sync.Mutex
	params   StreamParams
	cb       Callback
	open     bool
	running  bool
	calls    []string
	openErr  error
	startErr error
	frames   uint32
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Devices() ([]DeviceInfo, error) {
	in, out, _ := d.DefaultDevices()
	return []DeviceInfo{in, out}, nil
}

func (d *fakeDriver) DefaultDevices() (DeviceInfo, DeviceInfo, error) {
	return DeviceInfo{ID: "mic", MaxInputChannels: 1, IsDefaultInput: true},
		DeviceInfo{ID: "speaker", MaxOutputChannels: 2, PreferredSampleRate: 44100, IsDefaultOutput: true},
		nil
}

func (d *fakeDriver) Open(params StreamParams, cb Callback) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "open")
	if d.openErr != nil {
		return 0, d.openErr
	}
	d.params = params
	d.cb = cb
	d.open = true
	if d.frames != 0 {
		return d.frames, nil
	}
	return params.BufferFrames, nil
}

func (d *fakeDriver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "start")
	if d.startErr != nil {
		return d.startErr
	}
	d.running = true
	return nil
}

func (d *fakeDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "stop")
	d.running = false
	return nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "close")
	d.open = false
	d.cb = nil
	return nil
}

func (d *fakeDriver) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *fakeDriver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *fakeDriver) fire(output, input []byte, frames uint32) {
	d.mu.Lock()
	cb := d.cb
	d.mu.Unlock()
	cb(output, input, frames, 10*time.Millisecond, 0)
}

// journal общий журнал вызовов процессоров
type journal struct {
	entries []string
}

func (j *journal) add(s string) { j.entries = append(j.entries, s) }

// recorder процессор, записывающий вызовы в журнал
type recorder struct {
	BaseProcessor
	log        *journal
	formats    []SampleFormat
	rates      []uint32
	sizes      []BufferSize
	configErr  error
	cleanupErr error
	configured Configuration
	input      func(buf []byte, n int) int
	output     func(buf []byte, n int) int
	panicOut   bool
}

func newRecorder(name string, log *journal) *recorder {
	return &recorder{BaseProcessor: NewBaseProcessor(name), log: log}
}

func (r *recorder) SupportedFormats() []SampleFormat   { return r.formats }
func (r *recorder) SupportedSampleRates() []uint32     { return r.rates }
func (r *recorder) PreferredBufferSizes() []BufferSize { return r.sizes }

func (r *recorder) Configure(cfg Configuration) error {
	r.log.add("configure:" + r.Name())
	if r.configErr != nil {
		return r.configErr
	}
	r.configured = cfg
	return nil
}

func (r *recorder) CleanUp() error {
	r.log.add("cleanup:" + r.Name())
	return r.cleanupErr
}

func (r *recorder) ProcessInput(buf []byte, n int, _ *StreamInfo) int {
	r.log.add("in:" + r.Name())
	if r.input != nil {
		return r.input(buf, n)
	}
	return n
}

func (r *recorder) ProcessOutput(buf []byte, n int, _ *StreamInfo) int {
	r.log.add("out:" + r.Name())
	if r.panicOut {
		panic("сбой процессора")
	}
	if r.output != nil {
		return r.output(buf, n)
	}
	return n
}

var errBoom = errors.New("boom")
