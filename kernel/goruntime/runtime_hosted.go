//go:build !kernel

package goruntime

// When running as a regular process the runtime has already initialized
// itself, so the kernel-only initializers are no-ops.

func algInit()       {}
func modulesInit()   {}
func typeLinksInit() {}
func itabsInit()     {}
func mallocInit()    {}
