package anchor

import (
	"bytes"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// InstructionDiscriminator returns sha256("global:" + snake_case(name))[:8].
func InstructionDiscriminator(name string) [8]byte {
	var out [8]byte
	copy(out[:], bin.SighashInstruction(name))
	return out
}

// AccountDiscriminator returns sha256("account:" + Name)[:8].
func AccountDiscriminator(name string) [8]byte {
	var out [8]byte
	copy(out[:], bin.SighashAccount(name))
	return out
}

// EncodeInstruction returns the discriminator followed by the Borsh encoding
// of args in IDL order.
func EncodeInstruction(ix *IDLInstruction, args []any) ([]byte, error) {
	if len(args) != len(ix.Args) {
		return nil, fmt.Errorf("%w: %s expects %d arguments, got %d", ErrInvalidArgs, ix.Name, len(ix.Args), len(args))
	}
	disc := InstructionDiscriminator(ix.Name)
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	enc := bin.NewBorshEncoder(buf)
	for i, field := range ix.Args {
		if err := encodeArg(enc, field.Type, args[i]); err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidArgs, ix.Name, field.Name, err)
		}
	}
	return buf.Bytes(), nil
}

func encodeArg(enc *bin.Encoder, typ IDLType, v any) error {
	switch typ.Primitive {
	case "bool":
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", v)
		}
		return enc.WriteBool(b)
	case "u8":
		n, err := toUint(v, math.MaxUint8)
		if err != nil {
			return err
		}
		return enc.WriteUint8(uint8(n))
	case "u16":
		n, err := toUint(v, math.MaxUint16)
		if err != nil {
			return err
		}
		return enc.WriteUint16(uint16(n), bin.LE)
	case "u32":
		n, err := toUint(v, math.MaxUint32)
		if err != nil {
			return err
		}
		return enc.WriteUint32(uint32(n), bin.LE)
	case "u64":
		n, err := toUint(v, math.MaxUint64)
		if err != nil {
			return err
		}
		return enc.WriteUint64(n, bin.LE)
	case "i8":
		n, err := toInt(v, math.MinInt8, math.MaxInt8)
		if err != nil {
			return err
		}
		return enc.WriteInt8(int8(n))
	case "i16":
		n, err := toInt(v, math.MinInt16, math.MaxInt16)
		if err != nil {
			return err
		}
		return enc.WriteInt16(int16(n), bin.LE)
	case "i32":
		n, err := toInt(v, math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		return enc.WriteInt32(int32(n), bin.LE)
	case "i64":
		n, err := toInt(v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return err
		}
		return enc.WriteInt64(n, bin.LE)
	case "string":
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", v)
		}
		return enc.WriteString(s)
	case "bytes":
		b, ok := v.([]byte)
		if !ok {
			return fmt.Errorf("want []byte, got %T", v)
		}
		return enc.WriteBytes(b, true)
	case "publicKey", "pubkey":
		pk, ok := v.(solana.PublicKey)
		if !ok {
			return fmt.Errorf("want solana.PublicKey, got %T", v)
		}
		return enc.WriteBytes(pk[:], false)
	}
	return fmt.Errorf("unsupported type %s", typ)
}

func toUint(v any, max uint64) (uint64, error) {
	var n uint64
	switch x := v.(type) {
	case uint8:
		n = uint64(x)
	case uint16:
		n = uint64(x)
	case uint32:
		n = uint64(x)
	case uint64:
		n = x
	case uint:
		n = uint64(x)
	case int, int8, int16, int32, int64:
		i, _ := toInt(x, math.MinInt64, math.MaxInt64)
		if i < 0 {
			return 0, fmt.Errorf("negative value %d", i)
		}
		n = uint64(i)
	default:
		return 0, fmt.Errorf("want unsigned integer, got %T", v)
	}
	if n > max {
		return 0, fmt.Errorf("value %d overflows (max %d)", n, max)
	}
	return n, nil
}

func toInt(v any, min, max int64) (int64, error) {
	var n int64
	switch x := v.(type) {
	case int8:
		n = int64(x)
	case int16:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case int:
		n = int64(x)
	case uint8:
		n = int64(x)
	case uint16:
		n = int64(x)
	case uint32:
		n = int64(x)
	default:
		return 0, fmt.Errorf("want integer, got %T", v)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("value %d out of range [%d, %d]", n, min, max)
	}
	return n, nil
}
