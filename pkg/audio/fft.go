package audio

import "math"

// No FFT or DSP library appears anywhere in the retrieved pack, so the
// transform used for the spectrum and spectral descriptors is a small
// radix-2 Cooley-Tukey implementation over math/cmplx-free real/imaginary
// slices, sized to avoid per-block allocation once warmed up.

// hannWindow returns the Hann window coefficients for size n, cached per
// analyzer instance since the block size never changes mid-run.
func hannWindow(n int) []float32 {
	w := make([]float32, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = float32(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1))))
	}
	return w
}

// fftPlan holds the pre-allocated buffers for repeated in-place FFTs of a
// fixed size, so the analysis thread's hot loop never allocates.
type fftPlan struct {
	n    int
	real []float64
	imag []float64
}

// newFFTPlan requires n to be a power of two.
func newFFTPlan(n int) *fftPlan {
	return &fftPlan{n: n, real: make([]float64, n), imag: make([]float64, n)}
}

// Magnitude computes the FFT of windowed (size-n, zero-padded if needed)
// samples and returns the magnitude of the first n/2 bins (the
// non-redundant half of a real-valued signal's spectrum).
func (p *fftPlan) Magnitude(windowed []float32, out []float32) {
	for i := 0; i < p.n; i++ {
		if i < len(windowed) {
			p.real[i] = float64(windowed[i])
		} else {
			p.real[i] = 0
		}
		p.imag[i] = 0
	}

	fftInPlace(p.real, p.imag)

	half := p.n / 2
	for i := 0; i < half && i < len(out); i++ {
		re, im := p.real[i], p.imag[i]
		out[i] = float32(math.Sqrt(re*re + im*im))
	}
}

// fftInPlace runs an iterative radix-2 Cooley-Tukey transform on real/imag
// in place. len(real) must be a power of two.
func fftInPlace(real, imag []float64) {
	n := len(real)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			real[i], real[j] = real[j], real[i]
			imag[i], imag[j] = imag[j], imag[i]
		}
	}

	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		angleStep := -2 * math.Pi / float64(size)
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				angle := angleStep * float64(k)
				wr, wi := math.Cos(angle), math.Sin(angle)

				aIdx, bIdx := start+k, start+k+half
				br, bi := real[bIdx], imag[bIdx]
				tr := wr*br - wi*bi
				ti := wr*bi + wi*br

				real[bIdx] = real[aIdx] - tr
				imag[bIdx] = imag[aIdx] - ti
				real[aIdx] = real[aIdx] + tr
				imag[aIdx] = imag[aIdx] + ti
			}
		}
	}
}

// nextPow2 returns the smallest power of two >= n, used to size the FFT
// when the block size itself isn't already a power of two.
func nextPow2(n int) int {
	return nextPowerOfTwo(n)
}
