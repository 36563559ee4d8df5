package host

// Rent is the minimum-balance rule for keeping a buffer alive.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
}

// accountStorageOverhead is charged on top of the data length.
const accountStorageOverhead = 128

// DefaultRent matches the host's mainnet parameters.
var DefaultRent = Rent{LamportsPerByteYear: 3480, ExemptionYears: 2}

// MinimumBalance is the lamports a buffer of dataLen bytes must hold.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	return (accountStorageOverhead + uint64(dataLen)) * r.LamportsPerByteYear * r.ExemptionYears
}

// IsExempt reports whether lamports cover the minimum balance for dataLen.
func (r Rent) IsExempt(lamports uint64, dataLen int) bool {
	return lamports >= r.MinimumBalance(dataLen)
}
