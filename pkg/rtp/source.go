package rtp

import (
	"sync"
	"time"
)

// SourceStatistics статистика приема от удаленного источника (RFC 3550 A.1, A.3, A.8)
type SourceStatistics struct {
	SSRC uint32
	// SSRCChanges сколько раз источник сменил SSRC (перезапуск собеседника)
	SSRCChanges uint64

	Received      uint64
	BytesReceived uint64
	// Expected ожидаемое число пакетов по расширенному номеру последовательности
	Expected uint64
	// Lost Expected-Received, отрицателен при дубликатах
	Lost int64
	// FractionLost доля потерь в единицах 1/256
	FractionLost uint8
	// Jitter оценка межпакетного джиттера в единицах timestamp (мс)
	Jitter float64

	LastActivity time.Time
}

// SourceTracker ведет статистику одного удаленного источника.
// Реализует Put, поэтому ставится рядом с jitter буфером на пути приема.
// При смене SSRC статистика начинается заново.
type SourceTracker struct {
	mu  sync.Mutex
	now func() time.Time

	active      bool
	ssrc        uint32
	ssrcChanges uint64

	baseSeq  uint16
	maxSeq   uint16
	cycles   uint32
	received uint64
	bytes    uint64

	lastTransit int64
	haveTransit bool
	jitter      float64
	lastSeen    time.Time
}

// NewSourceTracker создает пустой трекер
func NewSourceTracker() *SourceTracker {
	return &SourceTracker{now: time.Now}
}

// Put учитывает принятую датаграмму
func (t *SourceTracker) Put(packet []byte) error {
	header, payload, err := ParsePacket(packet)
	if err != nil {
		return err
	}
	t.Observe(header, len(payload), t.now())
	return nil
}

// Observe учитывает пакет с заголовком header, принятый в момент arrival
func (t *SourceTracker) Observe(header Header, payloadSize int, arrival time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ssrc := header.SSRC()
	seq := header.SequenceNumber()

	if !t.active || ssrc != t.ssrc {
		if t.active {
			t.ssrcChanges++
		}
		t.reset(ssrc, seq)
	} else if seqNewer(seq, t.maxSeq) {
		if seq < t.maxSeq {
			// номер последовательности переполнился
			t.cycles++
		}
		t.maxSeq = seq
	}

	t.received++
	t.bytes += uint64(payloadSize)
	t.lastSeen = arrival

	// timestamp в миллисекундах, время прибытия приводится к тем же единицам
	transit := arrival.UnixMilli() - int64(header.Timestamp())
	if t.haveTransit {
		d := float64(transit - t.lastTransit)
		if d < 0 {
			d = -d
		}
		t.jitter += (d - t.jitter) / 16
	}
	t.lastTransit = transit
	t.haveTransit = true
}

func (t *SourceTracker) reset(ssrc uint32, seq uint16) {
	t.active = true
	t.ssrc = ssrc
	t.baseSeq = seq
	t.maxSeq = seq
	t.cycles = 0
	t.received = 0
	t.bytes = 0
	t.haveTransit = false
	t.jitter = 0
}

// Statistics возвращает снимок статистики
func (t *SourceTracker) Statistics() SourceStatistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return SourceStatistics{}
	}
	extendedMax := uint64(t.cycles)<<16 | uint64(t.maxSeq)
	expected := extendedMax - uint64(t.baseSeq) + 1
	lost := int64(expected) - int64(t.received)

	var fraction uint8
	if lost > 0 {
		fraction = uint8(min(uint64(lost)*256/expected, 255))
	}

	return SourceStatistics{
		SSRC:          t.ssrc,
		SSRCChanges:   t.ssrcChanges,
		Received:      t.received,
		BytesReceived: t.bytes,
		Expected:      expected,
		Lost:          lost,
		FractionLost:  fraction,
		Jitter:        t.jitter,
		LastActivity:  t.lastSeen,
	}
}

// seqNewer сравнивает номера последовательности с учетом переполнения
func seqNewer(a, b uint16) bool {
	return a != b && a-b < 1<<15
}
