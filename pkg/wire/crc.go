package wire

// crcInit is the CRC-16/CCITT-FALSE starting value.
const crcInit = 0xFFFF

// Checksum computes CRC-16/CCITT-FALSE over data. The firmware computes the
// same polynomial in its frame validator, so both sides reject a frame the
// transport mangled rather than executing garbage motion.
func Checksum(data []byte) uint16 {
	crc := uint16(crcInit)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
