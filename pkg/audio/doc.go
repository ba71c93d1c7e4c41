// Package audio содержит аудио движок и контракт цепочки процессоров.
//
// Engine не зависит от конкретной аудио подсистемы: ввод-вывод делегируется
// интерфейсу Driver, а данные на каждом периоде буфера проходят через Chain.
// Захваченные данные копируются в рабочий буфер и обрабатываются в порядке
// добавления процессоров, данные для воспроизведения обрабатываются на месте
// в обратном порядке. Так кодек, добавленный после фильтра, кодирует уже
// отфильтрованный сигнал, а при воспроизведении сначала декодирует пакет.
//
// Пример:
//
//	engine := audio.NewEngine(drv, audio.EngineConfig{Logger: logger})
//	if err := engine.AddProcessor(processor.NewGain("gain", 0.8, 1)); err != nil {
//		return err
//	}
//	if err := engine.StartDuplex(); err != nil { // конфигурация по умолчанию
//		return err
//	}
//	defer engine.Stop()
package audio
