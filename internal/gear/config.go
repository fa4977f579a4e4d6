package gear

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Config is fixed for the lifetime of an Engine.
type Config struct {
	UpperThreshold float64       // upper zone: mark spread >= UpperThreshold
	LowerThreshold float64       // lower zone: mark spread <= LowerThreshold
	GearStep       float64       // quantization granularity, e.g. 0.5
	Dwell          time.Duration // continuous residency before a gear is confirmed

	// Used only for message text.
	TickerA string
	TickerB string

	// SendTimeout bounds a single notification attempt. Default 10s.
	SendTimeout time.Duration
}

// Validate reports every problem that would make gear logic undefined.
func (c Config) Validate() error {
	var errs []error
	for name, v := range map[string]float64{
		"upper threshold": c.UpperThreshold,
		"lower threshold": c.LowerThreshold,
		"gear step":       c.GearStep,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, fmt.Errorf("%s must be finite, got %v", name, v))
		}
	}
	if c.GearStep <= 0 {
		errs = append(errs, fmt.Errorf("gear step must be > 0, got %v", c.GearStep))
	}
	if !(c.UpperThreshold > c.LowerThreshold) {
		errs = append(errs, fmt.Errorf("upper threshold %v must be above lower threshold %v",
			c.UpperThreshold, c.LowerThreshold))
	}
	if c.Dwell < 0 {
		errs = append(errs, fmt.Errorf("dwell must be >= 0, got %v", c.Dwell))
	}
	return errors.Join(errs...)
}
