// Package stats provides the standard normal distribution primitives used
// by the comparative-judgment scorer.
package stats

import (
	"math"

	"github.com/ahrav/go-thurstone/internal/domain"
)

// Region boundaries of the rational approximation. Below pLow and above
// pHigh the tail coefficient set is used.
const (
	pLow  = 0.02425
	pHigh = 1 - pLow
)

// Rational approximation coefficients for the central region, in r=(p-½)².
var (
	centralNum = [6]float64{
		-3.969683028665376e+01,
		2.209460984245205e+02,
		-2.759285104469687e+02,
		1.383577518672690e+02,
		-3.066479806614716e+01,
		2.506628277459239e+00,
	}
	centralDen = [5]float64{
		-5.447609879822406e+01,
		1.615858368580409e+02,
		-1.556989798598866e+02,
		6.680131188771972e+01,
		-1.328068155288572e+01,
	}
)

// Rational approximation coefficients for the tails, in q=sqrt(-2 ln p).
var (
	tailNum = [6]float64{
		-7.784894002430293e-03,
		-3.223964580411365e-01,
		-2.400758277161838e+00,
		-2.549732539343734e+00,
		4.374664141464968e+00,
		2.938163982698783e+00,
	}
	tailDen = [4]float64{
		7.784695709041462e-03,
		3.224671290700398e-01,
		2.445134137142996e+00,
		3.754408661907416e+00,
	}
)

// NormalQuantile returns Φ⁻¹(p), the z-score whose standard normal
// cumulative probability is p. p must lie strictly inside (0, 1); any other
// value, including NaN, yields a *domain.DomainError.
//
// The initial estimate is Acklam's rational approximation (relative error
// below 1.15e-9) with separate coefficient sets for the lower tail, the
// central region and the upper tail. One Halley step against math.Erfc
// brings the result to full double precision.
func NormalQuantile(p float64) (float64, error) {
	if math.IsNaN(p) || p <= 0 || p >= 1 {
		return 0, &domain.DomainError{Func: "NormalQuantile", Value: p}
	}
	return refine(acklam(p), p), nil
}

// MustNormalQuantile is like NormalQuantile but panics on a domain error.
// It is intended for package-level constants and tests.
func MustNormalQuantile(p float64) float64 {
	z, err := NormalQuantile(p)
	if err != nil {
		panic(err)
	}
	return z
}

func acklam(p float64) float64 {
	switch {
	case p < pLow:
		q := math.Sqrt(-2 * math.Log(p))
		return tailRatio(q)
	case p <= pHigh:
		q := p - 0.5
		r := q * q
		num := ((((centralNum[0]*r+centralNum[1])*r+centralNum[2])*r+centralNum[3])*r+centralNum[4])*r + centralNum[5]
		den := ((((centralDen[0]*r+centralDen[1])*r+centralDen[2])*r+centralDen[3])*r+centralDen[4])*r + 1
		return num * q / den
	default:
		q := math.Sqrt(-2 * math.Log1p(-p))
		return -tailRatio(q)
	}
}

func tailRatio(q float64) float64 {
	num := ((((tailNum[0]*q+tailNum[1])*q+tailNum[2])*q+tailNum[3])*q+tailNum[4])*q + tailNum[5]
	den := (((tailDen[0]*q+tailDen[1])*q+tailDen[2])*q+tailDen[3])*q + 1
	return num / den
}

// refine applies a single Halley iteration to x ≈ Φ⁻¹(p).
func refine(x, p float64) float64 {
	e := 0.5*math.Erfc(-x/math.Sqrt2) - p
	u := e * math.Sqrt(2*math.Pi) * math.Exp(x*x/2)
	return x - u/(1+x*u/2)
}

// Zelen & Severo (Abramowitz & Stegun 26.2.17) coefficients.
const (
	zsP  = 0.2316419
	zsB1 = 0.319381530
	zsB2 = -0.356563782
	zsB3 = 1.781477937
	zsB4 = -1.821255978
	zsB5 = 1.330274429
)

// NormalCDF returns Φ(x), the standard normal cumulative distribution,
// using the Zelen & Severo polynomial approximation. The absolute error is
// below 7.5e-8 everywhere.
func NormalCDF(x float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	if x < 0 {
		return 1 - NormalCDF(-x)
	}
	t := 1 / (1 + zsP*x)
	poly := t * (zsB1 + t*(zsB2+t*(zsB3+t*(zsB4+t*zsB5))))
	return 1 - NormalPDF(x)*poly
}

// NormalPDF returns the standard normal density at x.
func NormalPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
