package sink

import "encoding/binary"

// Decoded PCM is S16 in host byte order.

// s16ToInts widens native-endian S16 samples
func s16ToInts(dst []int, pcm []byte) []int {
	for i := 0; i+1 < len(pcm); i += 2 {
		dst = append(dst, int(int16(binary.NativeEndian.Uint16(pcm[i:]))))
	}
	return dst
}

// s16ToLittleEndian appends native-endian S16 samples to dst in the byte
// order WAV files use
func s16ToLittleEndian(dst, pcm []byte) []byte {
	for i := 0; i+1 < len(pcm); i += 2 {
		dst = binary.LittleEndian.AppendUint16(dst, binary.NativeEndian.Uint16(pcm[i:]))
	}
	return dst
}
