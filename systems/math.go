package systems

import "math"

const twoPi = 2 * math.Pi

func cos32(a float32) float32 {
	return float32(math.Cos(float64(a)))
}

func sin32(a float32) float32 {
	return float32(math.Sin(float64(a)))
}
