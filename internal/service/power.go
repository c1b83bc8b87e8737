package service

import (
	"math"
	"time"
)

// powerPrecision is the number of decimal places emitted for derived
// power values.
const powerPrecision = 3

// derivePower folds one cumulative-energy observation (kWh) into the
// per-slave energy table and returns the derived instantaneous power in
// kW. The boolean is false on the very first observation for a slave,
// when no interval exists yet.
//
// The counter is monotonic under normal operation: a decrease means the
// device rolled over or reset, so the delta is clamped to zero rather
// than reporting negative power. A zero delta holds the last non-zero
// power instead of snapping to zero, smoothing sampling jitter.
func (c *Coordinator) derivePower(slaveID int, curr float64, now time.Time) (float64, bool) {
	prev, ok := c.energy[slaveID]
	if !ok {
		c.energy[slaveID] = energySample{energy: curr, at: now}
		return 0, false
	}

	elapsed := now.Sub(prev.at).Seconds()
	if elapsed <= 0 {
		// Clock went backwards or ticks collapsed; recomputing would
		// divide by a garbage interval. Hold the previous value and
		// keep the stored sample untouched.
		return prev.lastPower, true
	}

	delta := curr - prev.energy
	if delta < 0 {
		c.logger.Warn().
			Int("slave_id", slaveID).
			Float64("previous_kwh", prev.energy).
			Float64("current_kwh", curr).
			Msg("Energy counter decreased, treating as rollover")
		delta = 0
	}

	power := prev.lastPower
	if delta > 0 {
		power = roundTo(delta/(elapsed/3600), powerPrecision)
	}

	sample := energySample{energy: curr, at: now, lastPower: prev.lastPower}
	if power > 0 {
		sample.lastPower = power
	}
	c.energy[slaveID] = sample

	return power, true
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
