// Package domain holds the read ports of the aggregates API
package domain

import (
	dsdom "pulseboard/internal/services/dailystore/domain"
	rdom "pulseboard/internal/services/rollup/domain"
)

// Ports are the stores the aggregates API reads
type Ports struct {
	Engine rdom.Port
	Daily  dsdom.Port
}

// MaxDailySpanDays bounds one daily read
const MaxDailySpanDays = 400
