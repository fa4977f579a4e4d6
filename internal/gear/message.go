package gear

import (
	"fmt"
	"strings"

	"spreadwatch/internal/model"
)

// FormatMessage renders the notification for a confirmed firing.
func FormatMessage(cfg Config, ev model.AlertEvent) (title, body string) {
	a, b := tickerOr(cfg.TickerA, "A"), tickerOr(cfg.TickerB, "B")

	var legs string
	if ev.Direction == model.Upper {
		title = fmt.Sprintf("%s new high premium >= %.2f", a, cfg.UpperThreshold)
		legs = fmt.Sprintf("short %s, long %s at market", a, b)
	} else {
		title = fmt.Sprintf("%s new low premium <= %.2f", a, cfg.LowerThreshold)
		legs = fmt.Sprintf("long %s, short %s at market", a, b)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Gear: %.2f\n", ev.Gear)
	fmt.Fprintf(&sb, "Tradable spread: %.2f\n", ev.DirectionalSpread)
	fmt.Fprintf(&sb, "(%s)\n", legs)
	fmt.Fprintf(&sb, "Mark reference: %.2f", ev.MarkSpread)
	return title, sb.String()
}

func tickerOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
