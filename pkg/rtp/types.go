package rtp

import "fmt"

// PayloadType определяет тип payload согласно RFC 3551 Table 4
type PayloadType uint8

// Аудио payload типы из RFC 3551
const (
	PayloadTypePCMU     PayloadType = 0  // ITU-T G.711 μ-law
	PayloadTypeGSM      PayloadType = 3  // GSM Full Rate
	PayloadTypeG723     PayloadType = 4  // ITU-T G.723.1
	PayloadTypeDVI4_8K  PayloadType = 5  // IMA ADPCM 32 kbit/s
	PayloadTypeDVI4_16K PayloadType = 6  // IMA ADPCM 64 kbit/s
	PayloadTypeLPC      PayloadType = 7  // LPC
	PayloadTypePCMA     PayloadType = 8  // ITU-T G.711 A-law
	PayloadTypeG722     PayloadType = 9  // ITU-T G.722
	PayloadTypeL16_2CH  PayloadType = 10 // Linear PCM, 2 канала
	PayloadTypeL16_1CH  PayloadType = 11 // Linear PCM, 1 канал
	PayloadTypeQCELP    PayloadType = 12 // Qualcomm CELP
	PayloadTypeCN       PayloadType = 13 // Comfort Noise
	PayloadTypeMPA      PayloadType = 14 // MPEG-1/MPEG-2 audio
	PayloadTypeG728     PayloadType = 15 // ITU-T G.728
	PayloadTypeDVI4_44K PayloadType = 16 // IMA ADPCM 44.1 kbit/s
	PayloadTypeDVI4_88K PayloadType = 17 // IMA ADPCM 88.2 kbit/s
	PayloadTypeG729     PayloadType = 18 // ITU-T G.729(a)

	// PayloadTypeOpus динамический тип для Opus (RFC 7587 не фиксирует номер)
	PayloadTypeOpus PayloadType = 112
)

var payloadTypeNames = map[PayloadType]string{
	PayloadTypePCMU:     "PCMU",
	PayloadTypeGSM:      "GSM",
	PayloadTypeG723:     "G723",
	PayloadTypeDVI4_8K:  "DVI4/8000",
	PayloadTypeDVI4_16K: "DVI4/16000",
	PayloadTypeLPC:      "LPC",
	PayloadTypePCMA:     "PCMA",
	PayloadTypeG722:     "G722",
	PayloadTypeL16_2CH:  "L16/2",
	PayloadTypeL16_1CH:  "L16/1",
	PayloadTypeQCELP:    "QCELP",
	PayloadTypeCN:       "CN",
	PayloadTypeMPA:      "MPA",
	PayloadTypeG728:     "G728",
	PayloadTypeDVI4_44K: "DVI4/44100",
	PayloadTypeDVI4_88K: "DVI4/88200",
	PayloadTypeG729:     "G729",
	PayloadTypeOpus:     "opus",
}

func (pt PayloadType) String() string {
	if name, ok := payloadTypeNames[pt]; ok {
		return name
	}
	return fmt.Sprintf("dynamic(%d)", uint8(pt))
}

// ParsePayloadType возвращает payload тип по его имени (регистр важен)
func ParsePayloadType(name string) (PayloadType, error) {
	for pt, n := range payloadTypeNames {
		if n == name {
			return pt, nil
		}
	}
	return 0, fmt.Errorf("неизвестный payload type: %q", name)
}
