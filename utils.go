package vkframe

import (
	"unsafe"
)

var end = "\x00"
var endChar byte = '\x00'

// ToBytes will take an unsafe.Pointer and length in bytes and convert it
// to a byte slice
func ToBytes(ptr unsafe.Pointer, lenInBytes int) []byte {
	if lenInBytes == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), lenInBytes)
}

func safeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func safeStrings(list []string) []string {
	ret := make([]string, len(list))
	for i := range list {
		ret[i] = safeString(list[i])
	}
	return ret
}

// sliceUint32 reinterprets a word aligned SPIR-V blob as its code words.
func sliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}

func clampUint32(v, low, high uint32) uint32 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
