//go:build linux && (arm || arm64)

package drdy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

func openGPIO(pin int) (*Line, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("drdy: invalid gpio pin %d", pin)
	}
	lineName := fmt.Sprintf("GPIO%d", pin)

	// Pi 5 kernels may expose the header on gpiochip4; scan everything.
	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", e.Name()))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}

		l := newLine(nil)
		line, err := chip.RequestLine(offset,
			gpiocdev.AsInput,
			gpiocdev.WithRisingEdge,
			gpiocdev.WithConsumer("imufusion-drdy"),
			gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { l.edge(time.Now()) }),
		)
		if err != nil {
			_ = chip.Close()
			continue
		}
		l.closeFn = func() error {
			err := line.Close()
			_ = chip.Close()
			return err
		}
		return l, nil
	}
	return nil, fmt.Errorf("drdy: gpio line %q not found (or busy)", lineName)
}

var openFn = openGPIO
