package orchestrator

// AgentMask is a 128-bit completion set indexed by agent ordinal. Bit 0 is
// never used; the aggregator does not stream.
type AgentMask struct {
	bits [2]uint64
}

func (m *AgentMask) Set(ordinal int) {
	if ordinal < 0 || ordinal > 127 {
		return
	}
	m.bits[ordinal>>6] |= 1 << (uint(ordinal) & 63)
}

func (m *AgentMask) Clear(ordinal int) {
	if ordinal < 0 || ordinal > 127 {
		return
	}
	m.bits[ordinal>>6] &^= 1 << (uint(ordinal) & 63)
}

func (m *AgentMask) Has(ordinal int) bool {
	if ordinal < 0 || ordinal > 127 {
		return false
	}
	return m.bits[ordinal>>6]&(1<<(uint(ordinal)&63)) != 0
}

// Any reports whether any agent is still streaming.
func (m *AgentMask) Any() bool {
	return m.bits[0]|m.bits[1] != 0
}
