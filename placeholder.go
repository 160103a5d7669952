package main

import (
	"encoding/binary"
	"os"
)

// writeSilentWAV writes a short silent PCM WAV file. Last-resort output of
// the online strategy so the client still receives a playable artifact when
// every conversion service is down.
func writeSilentWAV(path string, seconds int) error {
	const (
		sampleRate    = 8000
		bitsPerSample = 16
		channels      = 1
	)
	dataLen := seconds * sampleRate * channels * bitsPerSample / 8

	buf := make([]byte, 44+dataLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], channels)
	binary.LittleEndian.PutUint32(buf[24:28], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], sampleRate*channels*bitsPerSample/8)
	binary.LittleEndian.PutUint16(buf[32:34], channels*bitsPerSample/8)
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	return os.WriteFile(path, buf, 0644)
}
