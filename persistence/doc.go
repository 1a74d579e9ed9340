// Package persistence implements the on-disk dump format of a BinarySet.
//
// A dump is a fixed header, a section table and the section payloads:
//
//	magic "KWBS" | format version u32 | compression u8 | pad [3]byte | sections u32
//	per section: name len u16 | name | compression u8 | raw len u64 | stored len u64 | crc32c u32
//	table crc32c u32
//	payloads in table order
//
// All integers are little-endian. The checksum of a section covers its raw
// (decompressed) bytes, so a round trip is verified end to end.
package persistence
