package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
)

// Amount is an immutable arbitrary-precision integer. Every operation returns
// a new value; division truncates toward zero. It is stored as a decimal string.
type Amount struct {
	i *big.Int
}

func Zero() Amount { return Amount{i: new(big.Int)} }

func NewAmount(v int64) Amount { return Amount{i: big.NewInt(v)} }

func ParseAmount(s string) (Amount, error) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	return Amount{i: i}, nil
}

func (a Amount) bigInt() *big.Int {
	if a.i == nil {
		return new(big.Int)
	}
	return a.i
}

func (a Amount) Add(b Amount) Amount {
	return Amount{i: new(big.Int).Add(a.bigInt(), b.bigInt())}
}

func (a Amount) Mul(b Amount) Amount {
	return Amount{i: new(big.Int).Mul(a.bigInt(), b.bigInt())}
}

func (a Amount) MulInt64(n int64) Amount {
	return Amount{i: new(big.Int).Mul(a.bigInt(), big.NewInt(n))}
}

// QuoInt64 divides by n, truncating toward zero.
func (a Amount) QuoInt64(n int64) Amount {
	return Amount{i: new(big.Int).Quo(a.bigInt(), big.NewInt(n))}
}

func (a Amount) Sign() int { return a.bigInt().Sign() }

func (a Amount) IsZero() bool { return a.Sign() == 0 }

func (a Amount) Cmp(b Amount) int { return a.bigInt().Cmp(b.bigInt()) }

func (a Amount) String() string { return a.bigInt().String() }

func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Amount) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*a = Zero()
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		*a = NewAmount(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Amount", src)
	}

	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts both "123" and 123.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("invalid amount %s", string(b))
		}
		s = n.String()
	}

	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
