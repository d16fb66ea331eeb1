package model

// defaultResponseDivisor reserves 1/4 of total capacity for the model's
// reply when the caller expresses no preference. A fixed constant, not a
// per-call heuristic.
const defaultResponseDivisor = 4

// TokenAllocation is the split of a model's total capacity into the
// portion reserved for its reply and the portion available for history,
// files, and new input.
type TokenAllocation struct {
	Total    int
	Response int
	Content  int
}

// Allocate splits total capacity. Response equals reserved exactly — a
// zero reservation yields a zero response allowance, no implicit
// minimum. Content clamps at zero, and for any 0 <= reserved <= total
// the parts sum back to total. A negative reservation is treated as
// zero.
func Allocate(total, reserved int) TokenAllocation {
	if reserved < 0 {
		reserved = 0
	}
	content := total - reserved
	if content < 0 {
		content = 0
	}
	return TokenAllocation{
		Total:    total,
		Response: reserved,
		Content:  content,
	}
}

// AllocateDefault applies the default response fraction to the total.
func AllocateDefault(total int) TokenAllocation {
	return Allocate(total, total/defaultResponseDivisor)
}
