// Package jitter реализует буфер компенсации джиттера между потоком
// приема RTP и аудио callback'ом.
package jitter

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/rtp"
)

// ErrBufferStopped возвращается при записи в остановленный буфер
var ErrBufferStopped = errors.New("jitter buffer остановлен")

// Config параметры буфера
type Config struct {
	// Capacity максимальное число пакетов. При переполнении
	// отбрасывается самый старый пакет.
	Capacity int
	// Prefill число пакетов, которое нужно накопить перед началом
	// воспроизведения и после опустошения
	Prefill int
}

// DefaultConfig возвращает конфигурацию по умолчанию: 50 пакетов, предзаполнение 3
func DefaultConfig() Config {
	return Config{
		Capacity: 50,
		Prefill:  3,
	}
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("емкость jitter buffer должна быть положительной: %d", c.Capacity)
	}
	if c.Prefill < 0 || c.Prefill > c.Capacity {
		return fmt.Errorf("предзаполнение %d вне диапазона [0, %d]", c.Prefill, c.Capacity)
	}
	return nil
}

// Statistics счетчики буфера
type Statistics struct {
	Size      int
	Capacity  int
	Received  uint64
	Played    uint64
	Dropped   uint64 // отброшены при переполнении
	Late      uint64 // пришли после воспроизведения следующего пакета или дубликаты
	Malformed uint64
	Underruns uint64

	// SSRCChanges смены источника, каждая сбрасывает буфер
	SSRCChanges uint64
}

// Buffer упорядочивает пакеты по номеру последовательности с учетом
// переполнения номера. Put вызывается потоком приема, Get аудио
// callback'ом. Оба держат мьютекс только на время операции с кучей,
// Get никогда не ждет поступления пакетов.
type Buffer struct {
	config Config

	mu         sync.Mutex
	packets    packetHeap
	playing    bool
	havePlayed bool
	lastPlayed uint16
	ssrc       uint32
	haveSSRC   bool
	stopped    bool
	stats      Statistics
}

// NewBuffer создает буфер
func NewBuffer(config Config) (*Buffer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	b := &Buffer{
		config:  config,
		packets: make(packetHeap, 0, config.Capacity+1),
	}
	heap.Init(&b.packets)
	return b, nil
}

// Put разбирает датаграмму и помещает пакет в буфер. Данные копируются,
// вызывающий может переиспользовать raw.
func (b *Buffer) Put(raw []byte) error {
	data := make([]byte, len(raw))
	copy(data, raw)

	packet := &rtp.Packet{}
	unmarshalErr := packet.Unmarshal(data)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return ErrBufferStopped
	}
	if unmarshalErr != nil {
		b.stats.Malformed++
		return fmt.Errorf("ошибка демаршалинга RTP пакета: %w", unmarshalErr)
	}
	b.stats.Received++

	if b.haveSSRC && packet.SSRC != b.ssrc {
		// новый источник начинает свою нумерацию, старые пакеты не нужны
		b.stats.SSRCChanges++
		b.reset()
	}
	b.ssrc = packet.SSRC
	b.haveSSRC = true

	if b.havePlayed && !isSeqNewer(packet.SequenceNumber, b.lastPlayed) {
		b.stats.Late++
		return nil
	}
	for _, queued := range b.packets {
		if queued.SequenceNumber == packet.SequenceNumber {
			b.stats.Late++
			return nil
		}
	}

	heap.Push(&b.packets, packet)
	if len(b.packets) > b.config.Capacity {
		heap.Pop(&b.packets)
		b.stats.Dropped++
	}
	return nil
}

// Get возвращает следующий по порядку пакет. false означает, что
// пакета нет: буфер пуст, не заполнен до порога или остановлен.
func (b *Buffer) Get() (*rtp.Packet, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return nil, false
	}
	if !b.playing {
		if len(b.packets) == 0 || len(b.packets) < b.config.Prefill {
			return nil, false
		}
		b.playing = true
	}
	if len(b.packets) == 0 {
		b.playing = false
		b.stats.Underruns++
		return nil, false
	}

	packet := heap.Pop(&b.packets).(*rtp.Packet)
	b.lastPlayed = packet.SequenceNumber
	b.havePlayed = true
	b.stats.Played++
	return packet, true
}

// Len количество пакетов в буфере
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.packets)
}

// Stop останавливает буфер и отбрасывает накопленные пакеты
func (b *Buffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	b.reset()
}

// reset отбрасывает пакеты и состояние воспроизведения, вызывается под mu
func (b *Buffer) reset() {
	clear(b.packets)
	b.packets = b.packets[:0]
	b.playing = false
	b.havePlayed = false
}

// Statistics возвращает снимок счетчиков
func (b *Buffer) Statistics() Statistics {
	b.mu.Lock()
	defer b.mu.Unlock()
	stats := b.stats
	stats.Size = len(b.packets)
	stats.Capacity = b.config.Capacity
	return stats
}

// packetHeap реализует heap.Interface, наверху самый ранний номер
type packetHeap []*rtp.Packet

func (h packetHeap) Len() int { return len(h) }
func (h packetHeap) Less(i, j int) bool {
	return isSeqNewer(h[j].SequenceNumber, h[i].SequenceNumber)
}
func (h packetHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *packetHeap) Push(x interface{}) {
	*h = append(*h, x.(*rtp.Packet))
}

func (h *packetHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return item
}

// isSeqNewer проверяет, является ли seq1 новее seq2 (с учетом wrap-around)
func isSeqNewer(seq1, seq2 uint16) bool {
	return seq1 != seq2 && seq1-seq2 < 32768
}
