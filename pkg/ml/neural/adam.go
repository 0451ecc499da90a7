package neural

import "math"

const (
	beta1   = 0.9
	beta2   = 0.999
	epsilon = 1e-8
)

type adam struct {
	rate float64
	t    int
	m    []Layer
	v    []Layer
}

func newAdam(layers []Layer, rate float64) *adam {
	return &adam{rate: rate, m: zeroGrads(layers), v: zeroGrads(layers)}
}

func (a *adam) step(layers []Layer, grads []Layer) {
	a.t++
	c1 := 1 - math.Pow(beta1, float64(a.t))
	c2 := 1 - math.Pow(beta2, float64(a.t))
	update := func(param, grad, m, v *float64) {
		*m = beta1*(*m) + (1-beta1)*(*grad)
		*v = beta2*(*v) + (1-beta2)*(*grad)*(*grad)
		*param -= a.rate * (*m / c1) / (math.Sqrt(*v/c2) + epsilon)
	}
	for l := range layers {
		for o := range layers[l].Weights {
			for i := range layers[l].Weights[o] {
				update(&layers[l].Weights[o][i], &grads[l].Weights[o][i], &a.m[l].Weights[o][i], &a.v[l].Weights[o][i])
			}
			update(&layers[l].Bias[o], &grads[l].Bias[o], &a.m[l].Bias[o], &a.v[l].Bias[o])
		}
	}
}
