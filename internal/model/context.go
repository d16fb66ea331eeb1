package model

// DefaultReservation selects the default response fraction when passed
// as the reserved argument to NewContext.
const DefaultReservation = -1

// ModelContext bundles a resolved model with its token allocation. It is
// the opaque handle a reconstructed request carries so downstream tools
// reuse the budget instead of recomputing it.
type ModelContext struct {
	Name       string
	Capability Capability
	Allocation TokenAllocation
}

// NewContext resolves name through r and computes its allocation.
// reserved is the caller's response reservation in tokens;
// DefaultReservation (or any negative value) applies the default
// fraction. Resolution failures surface unchanged, including
// ErrModelNotFound.
func NewContext(r Resolver, name string, reserved int) (*ModelContext, error) {
	capability, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}

	var alloc TokenAllocation
	if reserved < 0 {
		alloc = AllocateDefault(capability.ContextWindow)
	} else {
		alloc = Allocate(capability.ContextWindow, reserved)
	}

	return &ModelContext{
		Name:       capability.Name,
		Capability: capability,
		Allocation: alloc,
	}, nil
}
