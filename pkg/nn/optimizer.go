package nn

import (
	"math"
	"strings"
)

// Optimizer updates flat parameter vectors in place. Params and grads are
// parallel slices that share backing arrays with the network's layers.
type Optimizer interface {
	Step(params, grads [][]float64)
	Name() string
}

// ByName selects an optimizer implementation; unrecognized names fall back
// to adam.
func ByName(name string, lr float64) Optimizer {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sgd":
		return NewSGD(lr, 0)
	case "rmsprop":
		return NewRMSProp(lr)
	case "adagrad":
		return NewAdaGrad(lr)
	default:
		return NewAdam(lr)
	}
}

type SGDOptimizer struct {
	LR       float64
	Momentum float64

	velocities [][]float64
}

func NewSGD(lr, momentum float64) *SGDOptimizer {
	return &SGDOptimizer{LR: lr, Momentum: momentum}
}

func (s *SGDOptimizer) Step(params, grads [][]float64) {
	if s.velocities == nil {
		s.velocities = zerosLike(params)
	}
	for i, p := range params {
		g := grads[i]
		if s.Momentum == 0 {
			for j := range p {
				p[j] -= s.LR * g[j]
			}
			continue
		}
		v := s.velocities[i]
		for j := range p {
			v[j] = s.Momentum*v[j] + g[j]
			p[j] -= s.LR * v[j]
		}
	}
}

func (s *SGDOptimizer) Name() string { return "sgd" }

type AdamOptimizer struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64

	m [][]float64
	v [][]float64
	t int
}

func NewAdam(lr float64) *AdamOptimizer {
	return &AdamOptimizer{LR: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

func (a *AdamOptimizer) Step(params, grads [][]float64) {
	if a.m == nil {
		a.m = zerosLike(params)
		a.v = zerosLike(params)
	}
	a.t++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.t))

	for i, p := range params {
		g := grads[i]
		m := a.m[i]
		v := a.v[i]
		for j := range p {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g[j]
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g[j]*g[j]
			mHat := m[j] / bc1
			vHat := v[j] / bc2
			p[j] -= a.LR * mHat / (math.Sqrt(vHat) + a.Epsilon)
		}
	}
}

func (a *AdamOptimizer) Name() string { return "adam" }

type RMSPropOptimizer struct {
	LR      float64
	Alpha   float64
	Epsilon float64

	v [][]float64
}

func NewRMSProp(lr float64) *RMSPropOptimizer {
	return &RMSPropOptimizer{LR: lr, Alpha: 0.99, Epsilon: 1e-8}
}

func (r *RMSPropOptimizer) Step(params, grads [][]float64) {
	if r.v == nil {
		r.v = zerosLike(params)
	}
	for i, p := range params {
		g := grads[i]
		v := r.v[i]
		for j := range p {
			v[j] = r.Alpha*v[j] + (1-r.Alpha)*g[j]*g[j]
			p[j] -= r.LR * g[j] / (math.Sqrt(v[j]) + r.Epsilon)
		}
	}
}

func (r *RMSPropOptimizer) Name() string { return "rmsprop" }

type AdaGradOptimizer struct {
	LR      float64
	Epsilon float64

	sum [][]float64
}

func NewAdaGrad(lr float64) *AdaGradOptimizer {
	return &AdaGradOptimizer{LR: lr, Epsilon: 1e-10}
}

func (a *AdaGradOptimizer) Step(params, grads [][]float64) {
	if a.sum == nil {
		a.sum = zerosLike(params)
	}
	for i, p := range params {
		g := grads[i]
		s := a.sum[i]
		for j := range p {
			s[j] += g[j] * g[j]
			p[j] -= a.LR * g[j] / (math.Sqrt(s[j]) + a.Epsilon)
		}
	}
}

func (a *AdaGradOptimizer) Name() string { return "adagrad" }

func zerosLike(params [][]float64) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = make([]float64, len(p))
	}
	return out
}
