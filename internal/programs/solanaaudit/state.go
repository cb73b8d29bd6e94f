package solanaaudit

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"solaudit/internal/anchor"
)

const (
	// MaxRewardPools is the fixed length of StakePool.RewardPools.
	MaxRewardPools = 10

	RewardPoolSize = 32 + 16 + 8 + 1 + 7
	// StakePoolSize includes the 8-byte account discriminator.
	StakePoolSize = 8 + 32 + 32 + 16 + 32 + 32 + MaxRewardPools*RewardPoolSize + 4*8 + 1 + 1 + 6

	stakePoolAccount = "StakePool"
)

var ErrStakePoolData = errors.New("solanaaudit: invalid stake pool data")

// StakePoolDiscriminator prefixes every StakePool account.
var StakePoolDiscriminator = anchor.AccountDiscriminator(stakePoolAccount)

// RewardPool is one reward slot of a stake pool.
type RewardPool struct {
	RewardVault              solana.PublicKey
	RewardsPerEffectiveStake bin.Uint128
	LastAmount               uint64
	IsLocked                 uint8
}

// StakePool mirrors the zero-copy on-chain account.
type StakePool struct {
	Creator            solana.PublicKey
	Authority          solana.PublicKey
	TotalWeightedStake bin.Uint128
	Vault              solana.PublicKey
	StakeMint          solana.PublicKey
	RewardPools        [MaxRewardPools]RewardPool
	BaseWeight         uint64
	MaxWeight          uint64
	MinDuration        uint64
	MaxDuration        uint64
	Nonce              uint8
	BumpSeed           uint8
}

// MarshalBinary encodes the account, discriminator included.
func (p *StakePool) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, StakePoolSize))
	enc := bin.NewBinEncoder(buf)
	if _, err := enc.Write(StakePoolDiscriminator[:]); err != nil {
		return nil, err
	}
	writeKey := func(k solana.PublicKey) error {
		_, err := enc.Write(k[:])
		return err
	}
	steps := []func() error{
		func() error { return writeKey(p.Creator) },
		func() error { return writeKey(p.Authority) },
		func() error { return enc.WriteUint128(p.TotalWeightedStake, bin.LE) },
		func() error { return writeKey(p.Vault) },
		func() error { return writeKey(p.StakeMint) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	for i := range p.RewardPools {
		rp := &p.RewardPools[i]
		if err := writeKey(rp.RewardVault); err != nil {
			return nil, err
		}
		if err := enc.WriteUint128(rp.RewardsPerEffectiveStake, bin.LE); err != nil {
			return nil, err
		}
		if err := enc.WriteUint64(rp.LastAmount, bin.LE); err != nil {
			return nil, err
		}
		if err := enc.WriteUint8(rp.IsLocked); err != nil {
			return nil, err
		}
		if _, err := enc.Write(make([]byte, 7)); err != nil {
			return nil, err
		}
	}
	for _, v := range []uint64{p.BaseWeight, p.MaxWeight, p.MinDuration, p.MaxDuration} {
		if err := enc.WriteUint64(v, bin.LE); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteUint8(p.Nonce); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(p.BumpSeed); err != nil {
		return nil, err
	}
	if _, err := enc.Write(make([]byte, 6)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes account data, discriminator included.
func (p *StakePool) UnmarshalBinary(data []byte) error {
	if len(data) < StakePoolSize {
		return fmt.Errorf("%w: %d bytes, want %d", ErrStakePoolData, len(data), StakePoolSize)
	}
	if !bytes.Equal(data[:8], StakePoolDiscriminator[:]) {
		return fmt.Errorf("%w: discriminator mismatch", ErrStakePoolData)
	}
	dec := bin.NewBinDecoder(data[8:StakePoolSize])
	var out StakePool
	var err error
	readKey := func(k *solana.PublicKey) {
		if err != nil {
			return
		}
		_, err = dec.Read(k[:])
	}
	readU128 := func(v *bin.Uint128) {
		if err != nil {
			return
		}
		*v, err = dec.ReadUint128(bin.LE)
	}
	readU64 := func(v *uint64) {
		if err != nil {
			return
		}
		*v, err = dec.ReadUint64(bin.LE)
	}
	readU8 := func(v *uint8) {
		if err != nil {
			return
		}
		*v, err = dec.ReadUint8()
	}
	skip := func(n int) {
		if err != nil {
			return
		}
		err = dec.Discard(n)
	}

	readKey(&out.Creator)
	readKey(&out.Authority)
	readU128(&out.TotalWeightedStake)
	readKey(&out.Vault)
	readKey(&out.StakeMint)
	for i := range out.RewardPools {
		rp := &out.RewardPools[i]
		readKey(&rp.RewardVault)
		readU128(&rp.RewardsPerEffectiveStake)
		readU64(&rp.LastAmount)
		readU8(&rp.IsLocked)
		skip(7)
	}
	readU64(&out.BaseWeight)
	readU64(&out.MaxWeight)
	readU64(&out.MinDuration)
	readU64(&out.MaxDuration)
	readU8(&out.Nonce)
	readU8(&out.BumpSeed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStakePoolData, err)
	}
	*p = out
	return nil
}

// Field offsets within the encoded account, used for in-place updates.
const (
	offsetVault       = 8 + 32 + 32 + 16
	offsetStakeMint   = offsetVault + 32
	offsetRewardPools = offsetStakeMint + 32
	offsetIsLocked    = 32 + 16 + 8
)

// RewardPoolLockOffset returns the byte offset of reward_pools[i].is_locked.
func RewardPoolLockOffset(i int) int {
	return offsetRewardPools + i*RewardPoolSize + offsetIsLocked
}

// VaultOf reads the vault key from raw account data without a full decode.
func VaultOf(data []byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(data[offsetVault : offsetVault+32])
}

// StakeMintOf reads the stake mint key from raw account data.
func StakeMintOf(data []byte) solana.PublicKey {
	return solana.PublicKeyFromBytes(data[offsetStakeMint : offsetStakeMint+32])
}
