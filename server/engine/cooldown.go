package engine

import "time"

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

// Cooldown is a minimum-interval gate. A gate that never fired is always ready.
type Cooldown struct {
	Interval time.Duration
	last     time.Time
	fired    bool
}

func NewCooldown(interval time.Duration) Cooldown { return Cooldown{Interval: interval} }

func (c *Cooldown) Ready(now time.Time) bool {
	return !c.fired || now.Sub(c.last) >= c.Interval
}

// TryFire records a firing at now and reports true when the gate is open.
func (c *Cooldown) TryFire(now time.Time) bool {
	if !c.Ready(now) {
		return false
	}
	c.Mark(now)
	return true
}

func (c *Cooldown) Mark(now time.Time) {
	c.last = now
	c.fired = true
}

// LastFired returns the last firing time, or false if it never fired.
func (c *Cooldown) LastFired() (time.Time, bool) { return c.last, c.fired }
