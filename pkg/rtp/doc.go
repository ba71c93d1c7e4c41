// Package rtp реализует кодек RTP пакетов для голосового движка.
// Основан на RFC 3550 (RTP) и RFC 3551 (RTP A/V Profile).
//
// Пакет отвечает только за фиксированный формат провода:
//   - Header: 12 байт заголовка с побитовыми аксессорами
//   - PackageHandler: сборка пакетов, состояние сессии (sequence, timestamp, SSRC)
//   - IsValidPacket: эвристическая проверка входящих датаграмм
//   - SourceTracker: потери и джиттер удаленного источника по RFC 3550
//
// Список CSRC и тело расширения заголовка не поддерживаются: существуют
// только поле счетчика CSRC и флаг расширения. Пакет на проводе всегда
// состоит из 12 байт заголовка и 0..MaximumPayloadSize байт полезной нагрузки.
//
// Пример:
//
//	handler, err := rtp.NewPackageHandler(160, rtp.PayloadTypePCMU)
//	if err != nil {
//		return err
//	}
//	packet, err := handler.CreatePackage(audio)
//	if err != nil {
//		return err
//	}
//	conn.Write(packet) // packet валиден до следующего вызова CreatePackage
package rtp
