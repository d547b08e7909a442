package estimator

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	defaultMaxIterations = 10000
	lmFunctionTolerance  = 1.49012e-8
	lmStepTolerance      = 1.49012e-8
	lmInitialDamping     = 1e-3
	lmMaxDamping         = 1e16
)

// model evaluates a parametric curve at t.
type model func(t float64, p []float64) float64

// gradient writes the partial derivatives of a model with respect to p into dst.
type gradient func(t float64, p []float64, dst []float64)

// fitResult holds the solution of a least-squares fit.
type fitResult struct {
	params     []float64
	covariance []float64 // diagonal of the parameter covariance matrix
	cost       float64
	iterations int
}

// levenbergMarquardt minimises sum((y - f(t, p))^2) starting at p0.
// The damped normal equations (JᵀJ + λ·diag(JᵀJ))·δ = Jᵀr are solved on every
// iteration; λ shrinks on accepted steps and grows on rejected ones.
func levenbergMarquardt(t, y, p0 []float64, f model, grad gradient, maxIter int) (*fitResult, error) {
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	n, m := len(t), len(p0)
	p := append([]float64(nil), p0...)
	r := make([]float64, n)
	cost := residuals(t, y, p, f, r)
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return nil, fmt.Errorf("%w: non-finite residuals at initial guess", ErrSolverFailure)
	}

	jac := mat.NewDense(n, m, nil)
	row := make([]float64, m)
	candidate := make([]float64, m)
	candidateResiduals := make([]float64, n)
	lambda := lmInitialDamping

	for iter := 1; iter <= maxIter; iter++ {
		fillJacobian(jac, t, p, grad, row)

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var g mat.VecDense
		g.MulVec(jac.T(), mat.NewVecDense(n, r))

		accepted := false
		for lambda <= lmMaxDamping {
			damped := mat.DenseCopyOf(&jtj)
			for k := 0; k < m; k++ {
				d := jtj.At(k, k)
				if d == 0 {
					d = 1e-12
				}
				damped.Set(k, k, d*(1+lambda))
			}

			var step mat.VecDense
			if err := step.SolveVec(damped, &g); err != nil && !isConditionOnly(err) {
				lambda *= 10
				continue
			}

			for k := range candidate {
				candidate[k] = p[k] + step.AtVec(k)
			}
			candidateCost := residuals(t, y, candidate, f, candidateResiduals)
			if math.IsNaN(candidateCost) || candidateCost >= cost {
				lambda *= 10
				continue
			}

			converged := cost-candidateCost <= lmFunctionTolerance*cost ||
				floats.Norm(step.RawVector().Data, 2) <= lmStepTolerance*(floats.Norm(p, 2)+lmStepTolerance)

			copy(p, candidate)
			copy(r, candidateResiduals)
			cost = candidateCost
			lambda = math.Max(lambda/10, 1e-12)
			accepted = true

			if converged {
				return finishFit(jac, t, p, grad, row, cost, iter), nil
			}
			break
		}

		// No damping produced a lower cost: p is a local minimum.
		if !accepted {
			return finishFit(jac, t, p, grad, row, cost, iter), nil
		}
	}

	return nil, fmt.Errorf("%w: no convergence after %d iterations", ErrSolverFailure, maxIter)
}

// finishFit estimates the parameter covariance as inv(JᵀJ)·cost/(n-m).
// The diagonal is +Inf when the covariance cannot be estimated.
func finishFit(jac *mat.Dense, t, p []float64, grad gradient, row []float64, cost float64, iterations int) *fitResult {
	n, m := jac.Dims()
	fillJacobian(jac, t, p, grad, row)

	diag := make([]float64, m)
	var jtj, inv mat.Dense
	jtj.Mul(jac.T(), jac)
	err := inv.Inverse(&jtj)
	if n <= m || (err != nil && !isConditionOnly(err)) {
		for k := range diag {
			diag[k] = math.Inf(1)
		}
	} else {
		scale := cost / float64(n-m)
		for k := range diag {
			diag[k] = inv.At(k, k) * scale
		}
	}

	return &fitResult{
		params:     append([]float64(nil), p...),
		covariance: diag,
		cost:       cost,
		iterations: iterations,
	}
}

func fillJacobian(jac *mat.Dense, t, p []float64, grad gradient, row []float64) {
	for i, ti := range t {
		grad(ti, p, row)
		jac.SetRow(i, row)
	}
}

// residuals writes y - f(t, p) into dst and returns the sum of squares.
func residuals(t, y, p []float64, f model, dst []float64) float64 {
	var sum float64
	for i, ti := range t {
		dst[i] = y[i] - f(ti, p)
		sum += dst[i] * dst[i]
	}
	return sum
}

// isConditionOnly reports whether err only warns about a poorly conditioned matrix.
func isConditionOnly(err error) bool {
	var cond mat.Condition
	return errors.As(err, &cond)
}
