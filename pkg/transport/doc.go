// Package transport содержит сетевую часть голосового движка:
// прием RTP датаграмм в отдельной горутине (Listener) и отправку
// собранных пакетов (Sender).
//
// Listener выполняет только эвристическую проверку rtp.IsValidPacket;
// упорядочивание и обработка потерь остаются за приемником пакетов
// (jitter.Buffer).
package transport
