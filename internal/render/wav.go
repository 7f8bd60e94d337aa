package render

import (
	"encoding/binary"
	"io"
	"math"
)

// EncodeWAVFloat32LE wraps interleaved float32 samples in a WAVE_FORMAT_IEEE_FLOAT
// RIFF container.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	out := make([]byte, 44+dataSize)
	putWAVHeader(out, dataSize, sampleRate, channels)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}

func WriteWAV(w io.Writer, samples []float32, sampleRate int, channels int) error {
	_, err := w.Write(EncodeWAVFloat32LE(samples, sampleRate, channels))
	return err
}

func putWAVHeader(out []byte, dataSize, sampleRate, channels int) {
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*channels*4))
	binary.LittleEndian.PutUint16(out[32:], uint16(channels*4))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
}
