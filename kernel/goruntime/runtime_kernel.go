//go:build kernel

package goruntime

import (
	_ "unsafe" // required for go:linkname
)

// The kernel image is linked with -ldflags=-checklinkname=0 so these pull
// linknames into the runtime are accepted.

//go:linkname algInit runtime.alginit
func algInit()

//go:linkname modulesInit runtime.modulesinit
func modulesInit()

//go:linkname typeLinksInit runtime.typelinksinit
func typeLinksInit()

//go:linkname itabsInit runtime.itabsinit
func itabsInit()

//go:linkname mallocInit runtime.mallocinit
func mallocInit()
