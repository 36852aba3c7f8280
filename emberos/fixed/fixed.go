// Package fixed implements 17.14 signed fixed-point arithmetic.
//
// Values carry 14 fractional bits in an int32. Products and quotients are
// widened to int64 before scaling so intermediate results do not overflow.
package fixed

// Fixed is a 17.14 fixed-point number.
type Fixed int32

// FracBits is the number of fractional bits.
const FracBits = 14

const one = 1 << FracBits

// One is the fixed-point value 1.
const One Fixed = one

// FromInt converts an integer to fixed point.
func FromInt(n int) Fixed { return Fixed(n * one) }

// Add returns x + y.
func (x Fixed) Add(y Fixed) Fixed { return x + y }

// Sub returns x - y.
func (x Fixed) Sub(y Fixed) Fixed { return x - y }

// AddInt returns x + n.
func (x Fixed) AddInt(n int) Fixed { return x + FromInt(n) }

// SubInt returns x - n.
func (x Fixed) SubInt(n int) Fixed { return x - FromInt(n) }

// Mul returns x * y.
func (x Fixed) Mul(y Fixed) Fixed { return Fixed(int64(x) * int64(y) / one) }

// MulInt returns x * n.
func (x Fixed) MulInt(n int) Fixed { return Fixed(int64(x) * int64(n)) }

// Div returns x / y. y must not be zero.
func (x Fixed) Div(y Fixed) Fixed { return Fixed(int64(x) * one / int64(y)) }

// DivInt returns x / n. n must not be zero.
func (x Fixed) DivInt(n int) Fixed { return Fixed(int64(x) / int64(n)) }

// Trunc converts to an integer rounding toward zero.
func (x Fixed) Trunc() int { return int(x / one) }

// Round converts to the nearest integer. Halves round toward positive infinity,
// so 2.5 becomes 3 and -2.5 becomes -2.
func (x Fixed) Round() int { return int((int64(x) + one/2) >> FracBits) }

// Scaled returns round(x * 100), the form exposed to user programs for
// load average and recent CPU. The product is taken in 64 bits.
func (x Fixed) Scaled() int { return int((int64(x)*100 + one/2) >> FracBits) }
