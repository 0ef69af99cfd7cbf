package entity

// Network is the canonical identifier of a supported blockchain network
// (e.g. "ethereum", "arbitrum", "bsc"). All registry and cache keys are
// scoped by it.
type Network string

func (n Network) String() string {
	return string(n)
}

// ZeroAddress represents the EVM zero address, used as the canonical
// contract address of native coins.
const ZeroAddress = "0x0000000000000000000000000000000000000000"
