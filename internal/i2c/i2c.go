package i2c

import "fmt"

// Path returns the character device for adapter n.
func Path(n int) string {
	return fmt.Sprintf("/dev/i2c-%d", n)
}
