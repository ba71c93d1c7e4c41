// Package processor содержит готовые процессоры для цепочки audio.Engine:
// усиление, кодек G.711, прозрачный процессор, мост в RTP и обертку
// для профилирования.
//
// Типичная цепочка голосового вызова:
//
//	gain -> g711 -> rtp
//
// Захват проходит ее слева направо и уходит в сеть пакетами,
// воспроизведение справа налево: пакет из jitter буфера декодируется
// и затем усиливается.
package processor
