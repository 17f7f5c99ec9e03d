// Package types provides well-known program addresses used by the sale host.
package types

// Native and well-known program addresses.
var (
	// SystemProgramAddr is the System Program address (all zeros).
	SystemProgramAddr = MustPubkeyFromBase58("11111111111111111111111111111111")

	// TokenProgramAddr is the SPL Token Program address.
	TokenProgramAddr = MustPubkeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// TokenSaleProgramAddr is the token sale engine's own program address.
	TokenSaleProgramAddr = MustPubkeyFromBase58("Aq2EAZ8i8UgKGaGzpSPhfvGxf4hkziymA4WqXrJ4NYu4")
)
