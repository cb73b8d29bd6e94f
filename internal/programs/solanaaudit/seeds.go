package solanaaudit

import (
	"github.com/gagliardetto/solana-go"
)

const stakePoolSeed = "stakePool"

// StakePoolSignerSeeds returns the seeds the program signs with on behalf of
// the pool: nonce, stake mint, authority, "stakePool", bump.
func StakePoolSignerSeeds(pool *StakePool) [][]byte {
	return [][]byte{
		{pool.Nonce},
		pool.StakeMint.Bytes(),
		pool.Authority.Bytes(),
		[]byte(stakePoolSeed),
		{pool.BumpSeed},
	}
}

// FindStakePoolAddress derives the pool PDA and its bump for the given
// nonce, stake mint and authority.
func FindStakePoolAddress(programID solana.PublicKey, nonce uint8, stakeMint, authority solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		{nonce},
		stakeMint.Bytes(),
		authority.Bytes(),
		[]byte(stakePoolSeed),
	}, programID)
}

// StakePoolSigner recomputes the address the pool's signer seeds resolve to.
func StakePoolSigner(programID solana.PublicKey, pool *StakePool) (solana.PublicKey, error) {
	return solana.CreateProgramAddress(StakePoolSignerSeeds(pool), programID)
}
