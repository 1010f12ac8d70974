// Package audio implements the canonical WAV container used on the wire
// between the Capture Stage and the Worker Stage: PCM, 16-bit signed
// little-endian, mono, with a complete header.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNotWav is returned by Decode when the header is missing the RIFF/WAVE
// magic or the expected fmt/data chunks.
var ErrNotWav = errors.New("audio: not a valid PCM WAV stream")

// Encode wraps 16-bit mono PCM samples in a canonical WAV container.
func Encode(pcm []int16, sampleRate int) []byte {
	data := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		data[2*i] = byte(uint16(s))
		data[2*i+1] = byte(uint16(s) >> 8)
	}
	return EncodeBytes(data, sampleRate)
}

// NewWavBuffer is kept for callers that already have raw little-endian PCM
// bytes rather than []int16 samples.
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	return EncodeBytes(pcm, sampleRate)
}

// EncodeBytes wraps little-endian 16-bit mono PCM bytes in a WAV container.
func EncodeBytes(pcm []byte, sampleRate int) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))           // fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))            // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1))            // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))   // sample rate
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	binary.Write(buf, binary.LittleEndian, uint16(2))            // block align
	binary.Write(buf, binary.LittleEndian, uint16(16))           // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// Decoded is the result of parsing a WAV container.
type Decoded struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	PCM           []byte // raw little-endian sample bytes from the data chunk
}

// Decode parses a canonical PCM WAV container. It walks chunks rather than
// assuming a fixed 44-byte header so extra chunks (e.g. "LIST") inserted by
// some encoders don't break parsing.
func Decode(b []byte) (Decoded, error) {
	var d Decoded
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return d, ErrNotWav
	}

	pos := 12
	foundFmt := false
	foundData := false
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(b) {
			size = len(b) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return d, fmt.Errorf("%w: short fmt chunk", ErrNotWav)
			}
			d.Channels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			d.SampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			d.BitsPerSample = int(binary.LittleEndian.Uint16(b[body+14 : body+16]))
			foundFmt = true
		case "data":
			d.PCM = append([]byte(nil), b[body:body+size]...)
			foundData = true
		}

		pos = body + size
		if size%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}

	if !foundFmt || !foundData {
		return d, ErrNotWav
	}
	return d, nil
}

// DecodeToInt16 decodes a canonical mono 16-bit WAV stream directly to
// samples, for the common case the pipeline round-trips.
func DecodeToInt16(b []byte) ([]int16, int, error) {
	d, err := Decode(b)
	if err != nil {
		return nil, 0, err
	}
	if d.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("audio: unsupported bit depth %d", d.BitsPerSample)
	}
	n := len(d.PCM) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(d.PCM[2*i]) | uint16(d.PCM[2*i+1])<<8)
	}
	return out, d.SampleRate, nil
}
