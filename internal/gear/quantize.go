package gear

import "github.com/shopspring/decimal"

// Quantize maps x onto its gear: floor(x/step)*step.
// The division runs in decimal so values such as 0.3/0.1 land on the
// intended step instead of one below it.
func Quantize(x, step float64) float64 {
	dx := decimal.NewFromFloat(x)
	ds := decimal.NewFromFloat(step)
	return dx.Div(ds).Floor().Mul(ds).InexactFloat64()
}

// advancedBy reports whether gear g is at least one step beyond last in the
// direction's sense: up for the upper side, down for the lower side.
func advancedBy(g, last, step float64, up bool) bool {
	dg := decimal.NewFromFloat(g)
	dl := decimal.NewFromFloat(last)
	ds := decimal.NewFromFloat(step)
	if up {
		return dg.GreaterThanOrEqual(dl.Add(ds))
	}
	return dg.LessThanOrEqual(dl.Sub(ds))
}
