package document

import (
	"fmt"
	"unicode/utf8"
)

// FontSizePolicy picks a text size for a product label.
type FontSizePolicy interface {
	FontSize(label string) float64
}

type SizeStep struct {
	Above int     `yaml:"above"`
	Size  float64 `yaml:"size"`
}

// StepPolicy maps label length to a size through thresholds. Steps are
// checked in order and the first one whose Above is exceeded wins.
type StepPolicy struct {
	Default float64    `yaml:"default"`
	Steps   []SizeStep `yaml:"steps"`
}

func (p StepPolicy) FontSize(label string) float64 {
	n := utf8.RuneCountInString(label)
	for _, step := range p.Steps {
		if n > step.Above {
			return step.Size
		}
	}
	return p.Default
}

// Validate requires thresholds in descending order with sizes that never grow
// as labels get longer.
func (p StepPolicy) Validate() error {
	if p.Default <= 0 {
		return fmt.Errorf("label sizes: default must be positive")
	}
	prevAbove := int(^uint(0) >> 1)
	prevSize := 0.0
	for i, step := range p.Steps {
		if step.Size <= 0 {
			return fmt.Errorf("label sizes: step %d has non-positive size", i)
		}
		if step.Above >= prevAbove {
			return fmt.Errorf("label sizes: step %d threshold %d is not below %d", i, step.Above, prevAbove)
		}
		if i > 0 && step.Size < prevSize {
			return fmt.Errorf("label sizes: step %d size %.1f is smaller than a longer label's", i, step.Size)
		}
		prevAbove, prevSize = step.Above, step.Size
	}
	if len(p.Steps) > 0 && p.Default < prevSize {
		return fmt.Errorf("label sizes: default %.1f is smaller than step sizes", p.Default)
	}
	return nil
}
