package chart

import (
	"math"
	"time"
)

// linear maps a data domain onto a pixel range.
type linear struct {
	d0, d1 float64
	r0, r1 float64
}

func (s linear) at(v float64) float64 {
	if s.d1 == s.d0 {
		return (s.r0 + s.r1) / 2
	}
	return s.r0 + (v-s.d0)/(s.d1-s.d0)*(s.r1-s.r0)
}

func (s linear) px(v float64) int {
	return int(math.Round(s.at(v)))
}

// niceTicks returns evenly spaced round values covering [lo, hi] with about n ticks.
func niceTicks(lo, hi float64, n int) []float64 {
	if n < 2 {
		n = 2
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		if hi == 0 {
			hi = 1
		} else {
			pad := math.Abs(hi) * 0.1
			lo, hi = lo-pad, hi+pad
		}
	}

	step := niceNum(niceNum(hi-lo, false)/float64(n-1), true)
	start := math.Floor(lo/step) * step
	end := math.Ceil(hi/step) * step

	count := int(math.Round((end-start)/step)) + 1
	ticks := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		ticks = append(ticks, start+float64(i)*step)
	}
	return ticks
}

func niceNum(x float64, round bool) float64 {
	exp := math.Floor(math.Log10(x))
	f := x / math.Pow(10, exp)

	var nf float64
	if round {
		switch {
		case f < 1.5:
			nf = 1
		case f < 3:
			nf = 2
		case f < 7:
			nf = 5
		default:
			nf = 10
		}
	} else {
		switch {
		case f <= 1:
			nf = 1
		case f <= 2:
			nf = 2
		case f <= 5:
			nf = 5
		default:
			nf = 10
		}
	}
	return nf * math.Pow(10, exp)
}

// monthTicks picks month starts between first and last with at most max labels.
func monthTicks(first, last time.Time, max int) []time.Time {
	months := (last.Year()-first.Year())*12 + int(last.Month()-first.Month()) + 1
	if months <= 0 {
		return nil
	}
	step := 1
	if max > 0 && months > max {
		step = int(math.Ceil(float64(months) / float64(max)))
	}
	ticks := make([]time.Time, 0, months/step+1)
	for i := 0; i < months; i += step {
		ticks = append(ticks, first.AddDate(0, i, 0))
	}
	return ticks
}
