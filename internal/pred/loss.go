package pred

import "gonum.org/v1/gonum/mat"

// LogLoss is the cross-entropy of one timestep, where Pred already holds
// log-probabilities and Gold is a one-hot or soft target of the same
// length.
//
// Gold is not renormalized: with an unnormalized target Loss is still
// -dot(Gold, Pred).
type LogLoss struct {
	Gold *mat.VecDense
	Pred *mat.VecDense
}

// Loss returns -dot(Gold, Pred).
func (l LogLoss) Loss() float64 {
	return -mat.Dot(l.Gold, l.Pred)
}

// Grad returns the gradient of Loss with respect to Pred, which is -Gold.
func (l LogLoss) Grad() *mat.VecDense {
	g := mat.NewVecDense(l.Gold.Len(), nil)
	g.ScaleVec(-1, l.Gold)
	return g
}

// OneHot returns a length-k target with a 1 at index.
func OneHot(k, index int) *mat.VecDense {
	v := mat.NewVecDense(k, nil)
	v.SetVec(index, 1)
	return v
}
