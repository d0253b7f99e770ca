package ps2

// Flag values accepted by PolicyFromFlags
const (
	Use    = 0 // check the bit
	Ignore = 1 // skip the check, for keyboards that get it wrong
)

// ValidationPolicy selects which frame checks a receive enforces
type ValidationPolicy struct {
	ValidateStart  bool
	ValidateStop   bool
	ValidateParity bool
}

// DefaultPolicy validates start, stop and parity
func DefaultPolicy() ValidationPolicy {
	return ValidationPolicy{ValidateStart: true, ValidateStop: true, ValidateParity: true}
}

// PolicyFromFlags builds a policy from Use/Ignore flag values.
// Any non-zero flag is treated as Ignore.
func PolicyFromFlags(start, stop, parity int) ValidationPolicy {
	return ValidationPolicy{
		ValidateStart:  start == Use,
		ValidateStop:   stop == Use,
		ValidateParity: parity == Use,
	}
}

// Flags returns the policy as Use/Ignore values in start, stop, parity order
func (p ValidationPolicy) Flags() (start, stop, parity int) {
	return flag(p.ValidateStart), flag(p.ValidateStop), flag(p.ValidateParity)
}

func flag(validate bool) int {
	if validate {
		return Use
	}
	return Ignore
}

// bits packs the policy for atomic storage
func (p ValidationPolicy) bits() uint32 {
	var v uint32
	if p.ValidateStart {
		v |= 1 << 0
	}
	if p.ValidateStop {
		v |= 1 << 1
	}
	if p.ValidateParity {
		v |= 1 << 2
	}
	return v
}

func policyFromBits(v uint32) ValidationPolicy {
	return ValidationPolicy{
		ValidateStart:  v&(1<<0) != 0,
		ValidateStop:   v&(1<<1) != 0,
		ValidateParity: v&(1<<2) != 0,
	}
}
