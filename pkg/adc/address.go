package adc

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// NumChannels is the number of single-ended inputs on the chip.
const NumChannels = 8

// Address selects one of the eight single-ended inputs. It is a 3-bit value,
// sent to the chip most significant bit first.
type Address uint8

// NewAddress returns the address of channel ch (0-7).
func NewAddress(ch int) (Address, error) {
	if ch < 0 || ch >= NumChannels {
		return 0, fmt.Errorf("invalid channel %d", ch)
	}
	return Address(ch), nil
}

// ParseAddress builds an address from its three bits, MSB first, so
// [0,1,0] is channel 2.
func ParseAddress(bits []int) (Address, error) {
	if len(bits) != 3 {
		return 0, fmt.Errorf("address needs 3 bits, got %d", len(bits))
	}
	var a Address
	for i, b := range bits {
		if b != 0 && b != 1 {
			return 0, fmt.Errorf("address bit %d is %d, want 0 or 1", i, b)
		}
		a = a<<1 | Address(b)
	}
	return a, nil
}

// Channel returns the channel index.
func (a Address) Channel() int { return int(a & 0x07) }

// Bits returns the address as the three levels clocked out after the
// single-ended bit.
func (a Address) Bits() [3]gpio.Level {
	return [3]gpio.Level{
		a&0x04 != 0,
		a&0x02 != 0,
		a&0x01 != 0,
	}
}

func (a Address) String() string {
	return fmt.Sprintf("ch%d[%d%d%d]", a.Channel(), a>>2&1, a>>1&1, a&1)
}
