package main

import (
	"kestrel/kernel/boot"
	"kestrel/kernel/gate"
	"kestrel/kernel/mm"
)

// The rt0 assembly fills these in before calling main.
var (
	multibootInfoPtr uintptr
	linkerSymbols    mm.LinkerSymbols
	trapStubs        [gate.Entries]uintptr
)

// main is the only Go symbol visible to the rt0 initialization code. It works
// as a trampoline for boot.Start and keeps the compiler from discarding the
// kernel code, which is otherwise unreachable from Go.
//
// main is not expected to return. If it does, the rt0 code halts the CPU.
func main() {
	boot.Start(multibootInfoPtr, &linkerSymbols, &trapStubs)
}
