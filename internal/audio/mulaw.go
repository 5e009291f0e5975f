package audio

// DecodeMuLaw expands G.711 mu-law samples to little-endian PCM16. Telephony
// media streams deliver mu-law; the detector needs linear samples.
func DecodeMuLaw(in []byte) []byte {
	out := make([]byte, len(in)*2)
	for i, b := range in {
		s := muLawToLinear(b)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

func muLawToLinear(b byte) int16 {
	b = ^b
	sign := int16(b & 0x80)
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	sample := (int16(mantissa)<<3 + 0x84) << exponent
	sample -= 0x84
	if sign != 0 {
		return -sample
	}
	return sample
}
