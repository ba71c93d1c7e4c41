package main

import (
	"fmt"
	"io"

	"github.com/arzzra/voice_engine/pkg/audio"
)

func writeDevices(w io.Writer, drv audio.Driver) error {
	devices, err := drv.Devices()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Устройства драйвера %s:\n", drv.Name())
	for _, d := range devices {
		mark := ""
		if d.IsDefaultInput {
			mark += " [вход по умолчанию]"
		}
		if d.IsDefaultOutput {
			mark += " [выход по умолчанию]"
		}
		if _, err := fmt.Fprintf(w, "  %s: %s (вход %d, выход %d, %d Гц)%s\n",
			d.ID, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.PreferredSampleRate, mark); err != nil {
			return err
		}
	}
	return nil
}
