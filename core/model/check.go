package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSchedule is wrapped by every violation returned from CheckSchedule.
var ErrInvalidSchedule = errors.New("invalid schedule")

// CheckSchedule verifies demand balance, capacity, ramping and minimum
// up/down times of an accepted schedule. tol absorbs LP round-off.
func CheckSchedule(d *ProblemData, s *Schedule, tol float64) error {
	u, p, l := s.Commitment, s.Dispatch.Production, s.Dispatch.Shedding
	if len(u) != d.G() || len(p) != d.G() || len(l) != d.T() {
		return fmt.Errorf("%w: dimensions do not match %d generators and %d periods", ErrInvalidSchedule, d.G(), d.T())
	}
	for t := 0; t < d.T(); t++ {
		sum := l[t]
		for g := range d.Generators {
			sum += p[g][t]
		}
		if math.Abs(sum-d.Demand[t]) > tol {
			return fmt.Errorf("%w: period %d supplies %.6g for demand %.6g", ErrInvalidSchedule, t+1, sum, d.Demand[t])
		}
		if l[t] < -tol {
			return fmt.Errorf("%w: negative shedding %.6g in period %d", ErrInvalidSchedule, l[t], t+1)
		}
	}
	for g, gen := range d.Generators {
		if err := checkCapacity(gen, u[g], p[g], tol); err != nil {
			return err
		}
		if err := checkRamp(gen, p[g], tol); err != nil {
			return err
		}
	}
	return CheckMinTimes(d, u)
}

func checkCapacity(gen Generator, u []int, p []float64, tol float64) error {
	for t := range p {
		switch {
		case u[t] == 0 && math.Abs(p[t]) > tol:
			return fmt.Errorf("%w: %s produces %.6g while offline in period %d", ErrInvalidSchedule, gen.Name, p[t], t+1)
		case u[t] == 1 && (p[t] < gen.MinP-tol || p[t] > gen.MaxP+tol):
			return fmt.Errorf("%w: %s output %.6g outside [%.6g, %.6g] in period %d", ErrInvalidSchedule, gen.Name, p[t], gen.MinP, gen.MaxP, t+1)
		case u[t] != 0 && u[t] != 1:
			return fmt.Errorf("%w: %s commitment %d is not binary in period %d", ErrInvalidSchedule, gen.Name, u[t], t+1)
		}
	}
	return nil
}

func checkRamp(gen Generator, p []float64, tol float64) error {
	prev := 0.0
	for t := range p {
		if math.Abs(p[t]-prev) > gen.RampLimit+tol {
			return fmt.Errorf("%w: %s ramps by %.6g between periods %d and %d (limit %.6g)", ErrInvalidSchedule, gen.Name, p[t]-prev, t, t+1, gen.RampLimit)
		}
		prev = p[t]
	}
	return nil
}

// CheckMinTimes walks the off→on and on→off transitions of every generator
// and requires the new state to persist through the clipped window.
func CheckMinTimes(d *ProblemData, u Commitment) error {
	for g := range d.Generators {
		if err := checkMinTimes(d, g, u); err != nil {
			return err
		}
	}
	return nil
}

func checkMinTimes(d *ProblemData, g int, u Commitment) error {
	gen := d.Generators[g]
	for t := 1; t <= d.T(); t++ {
		on, wasOn := u.On(g, t-1), u.On(g, t-2)
		if on && !wasOn {
			for j := t; j <= d.UpWindowEnd(g, t); j++ {
				if !u.On(g, j-1) {
					return fmt.Errorf("%w: %s started in period %d but is off in period %d (min up %d)", ErrInvalidSchedule, gen.Name, t, j, gen.MinUpTime)
				}
			}
		}
		if !on && wasOn {
			for j := t; j <= d.DownWindowEnd(g, t); j++ {
				if u.On(g, j-1) {
					return fmt.Errorf("%w: %s stopped in period %d but is on in period %d (min down %d)", ErrInvalidSchedule, gen.Name, t, j, gen.MinDownTime)
				}
			}
		}
	}
	return nil
}
