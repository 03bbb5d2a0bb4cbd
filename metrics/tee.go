package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Tee returns a Registry that creates every metric in all of regs and fans
// updates out to each of them, e.g. to serve /metrics and push at the same time.
func Tee(regs ...Registry) Registry {
	if len(regs) == 1 {
		return regs[0]
	}
	return tee(regs)
}

type tee []Registry

func (t tee) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	gauges := make(teeGauge, 0, len(t))
	for _, r := range t {
		g, err := r.NewGauge(opts)
		if err != nil {
			return nil, err
		}
		gauges = append(gauges, g)
	}
	return gauges, nil
}

func (t tee) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error) {
	vecs := make(teeGaugeVec, 0, len(t))
	for _, r := range t {
		v, err := r.NewGaugeVec(opts, labels)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, v)
	}
	return vecs, nil
}

func (t tee) NewCounter(opts prometheus.CounterOpts) (Counter, error) {
	counters := make(teeCounter, 0, len(t))
	for _, r := range t {
		c, err := r.NewCounter(opts)
		if err != nil {
			return nil, err
		}
		counters = append(counters, c)
	}
	return counters, nil
}

func (t tee) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	vecs := make(teeCounterVec, 0, len(t))
	for _, r := range t {
		v, err := r.NewCounterVec(opts, labels)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, v)
	}
	return vecs, nil
}

type teeGauge []Gauge

func (g teeGauge) Set(v float64) {
	for _, gauge := range g {
		gauge.Set(v)
	}
}

type teeGaugeVec []GaugeVec

func (g teeGaugeVec) With(labels prometheus.Labels) Gauge {
	gauges := make(teeGauge, 0, len(g))
	for _, vec := range g {
		gauges = append(gauges, vec.With(labels))
	}
	return gauges
}

type teeCounter []Counter

func (c teeCounter) Inc() {
	for _, counter := range c {
		counter.Inc()
	}
}

func (c teeCounter) Add(v float64) {
	for _, counter := range c {
		counter.Add(v)
	}
}

type teeCounterVec []CounterVec

func (c teeCounterVec) With(labels prometheus.Labels) Counter {
	counters := make(teeCounter, 0, len(c))
	for _, vec := range c {
		counters = append(counters, vec.With(labels))
	}
	return counters
}
