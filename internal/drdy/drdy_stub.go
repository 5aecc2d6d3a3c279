//go:build !linux || (!arm && !arm64)

package drdy

import "fmt"

func openGPIO(pin int) (*Line, error) {
	return nil, fmt.Errorf("drdy: gpio unsupported on this platform")
}

var openFn = openGPIO
