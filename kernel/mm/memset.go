package mm

import "unsafe"

// Memset sets size bytes at the given address to the supplied value. Instead
// of looping over each byte, Memset writes the first byte and then performs
// log2(size) copy calls, each one doubling the initialized prefix.
func Memset(addr uintptr, value byte, size Size) {
	if size == 0 {
		return
	}

	target := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))

	target[0] = value
	for index := Size(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}
