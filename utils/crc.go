package utils

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// GenerateCrc checksums the parts as if they were one buffer.
func GenerateCrc(parts ...[]byte) uint32 {
	var crc uint32
	for _, p := range parts {
		crc = crc32.Update(crc, castagnoli, p)
	}
	return crc
}

func CheckCrc(crc uint32, parts ...[]byte) bool {
	return GenerateCrc(parts...) == crc
}
