// Package ops implements the operator kernels and their registry. A
// kernel translates the engine tensor handed to it into primitive-library
// descriptors, pulls a compiled primitive from the process-wide cache,
// and executes it into a pooled output buffer.
package ops

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/23skdu/longbow-bodkin/internal/device"
	"github.com/23skdu/longbow-bodkin/internal/tensor"
)

// Kernel is one operator implementation.
type Kernel interface {
	Name() string
	Compute(*OpContext) error
}

// OpContext carries one kernel invocation: the execution device, the
// input tensor, and the output slot the kernel fills.
type OpContext struct {
	Ctx    context.Context
	Device *device.Context
	Input  *tensor.Tensor
	Output *tensor.Tensor
}

var (
	regMu    sync.RWMutex
	registry = make(map[string]func() Kernel)
)

// Register adds a kernel constructor under a name. Duplicate registration
// is a programming error and panics, matching init-time registration
// semantics.
func Register(name string, ctor func() Kernel) {
	regMu.Lock()
	defer regMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("ops: duplicate kernel registration for %q", name))
	}
	registry[name] = ctor
}

// Lookup instantiates the kernel registered under name.
func Lookup(name string) (Kernel, error) {
	regMu.RLock()
	ctor, ok := registry[name]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("ops: no kernel registered for %q", name)
	}
	return ctor(), nil
}

// Names lists the registered kernels in sorted order.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
