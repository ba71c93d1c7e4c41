package transport

import "errors"

type teeSink []PacketSink

// Tee передает каждую датаграмму всем получателям по порядку. Ошибка
// одного получателя не мешает остальным, ошибки объединяются.
func Tee(sinks ...PacketSink) PacketSink {
	return teeSink(sinks)
}

func (t teeSink) Put(packet []byte) error {
	var errs []error
	for _, sink := range t {
		if err := sink.Put(packet); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
