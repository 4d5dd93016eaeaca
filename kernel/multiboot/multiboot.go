// Package multiboot reads the boot information block that a multiboot2
// compliant bootloader hands to the kernel.
package multiboot

import (
	"strings"
	"unsafe"
)

var (
	infoData  uintptr
	cmdLineKV map[string]string
)

type tagType uint32

// nolint
const (
	tagMbSectionEnd tagType = iota
	tagBootCmdLine
	tagBootLoaderName
)

// info describes the multiboot info section header.
type info struct {
	// Total size of multiboot info section.
	totalSize uint32

	// Always set to zero; reserved for future use
	reserved uint32
}

// tagHeader describes the header the precedes each tag.
type tagHeader struct {
	// The type of the tag
	tagType tagType

	// The size of the tag including the header but *not* including any
	// padding. In the multiboot2 format each tag starts at a 8-byte aligned
	// address.
	size uint32
}

// SetInfoPtr updates the internal multiboot information pointer to the given
// value. This function must be invoked before invoking any other function
// exported by this package.
func SetInfoPtr(ptr uintptr) {
	infoData = ptr
	cmdLineKV = nil
}

// InfoSize returns the total size of the multiboot information block or 0
// if no block has been registered.
func InfoSize() uint32 {
	if infoData == 0 {
		return 0
	}
	return (*info)(unsafe.Pointer(infoData)).totalSize
}

// GetBootCmdLine returns the command line key-value pairs passed to the
// kernel. Options without a value (e.g. "nofoo") map to themselves. This
// function must only be invoked after bootstrapping the memory allocator.
func GetBootCmdLine() map[string]string {
	if cmdLineKV != nil {
		return cmdLineKV
	}

	cmdLineKV = make(map[string]string)

	if cmdLine := tagString(tagBootCmdLine); cmdLine != "" {
		for _, pair := range strings.Fields(cmdLine) {
			kv := strings.Split(pair, "=")
			switch len(kv) {
			case 2: // foo=bar
				cmdLineKV[kv[0]] = kv[1]
			case 1: // nofoo
				cmdLineKV[kv[0]] = kv[0]
			}
		}
	}

	return cmdLineKV
}

// GetBootLoaderName returns the name of the bootloader that started the
// kernel or an empty string if the bootloader did not provide it.
func GetBootLoaderName() string {
	return tagString(tagBootLoaderName)
}

// tagString returns the contents of a tag holding a C-style NULL-terminated
// string.
func tagString(tagType tagType) string {
	curPtr, size := findTagByType(tagType)
	if size == 0 {
		return ""
	}

	raw := unsafe.Slice((*byte)(unsafe.Pointer(curPtr)), size)
	for i, b := range raw {
		if b == 0 {
			raw = raw[:i]
			break
		}
	}

	return string(raw)
}

// findTagByType scans the multiboot info data looking for the start of of the
// specified type. It returns a pointer to the tag contents start offset and
// the content length excluding the tag header.
//
// If the tag is not present in the multiboot info, findTagByType will return
// back (0,0).
func findTagByType(tagType tagType) (uintptr, uint32) {
	if infoData == 0 {
		return 0, 0
	}

	var ptrTagHeader *tagHeader

	curPtr := infoData + 8
	for ptrTagHeader = (*tagHeader)(unsafe.Pointer(curPtr)); ptrTagHeader.tagType != tagMbSectionEnd; ptrTagHeader = (*tagHeader)(unsafe.Pointer(curPtr)) {
		if ptrTagHeader.tagType == tagType {
			return curPtr + 8, ptrTagHeader.size - 8
		}

		// Tags are aligned at 8-byte aligned addresses
		curPtr += uintptr(int32(ptrTagHeader.size+7) & ^7)
	}

	return 0, 0
}
