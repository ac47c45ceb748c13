package media

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Grayscale converts every frame to grayscale, in parallel.
// The conversion is per-frame independent; parallelism is bounded by the
// number of CPUs so a large clip cannot starve other requests.
func Grayscale(ctx context.Context, frames FrameSequence) ([]GrayFrame, error) {
	grays := make([]GrayFrame, len(frames))

	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(runtime.GOMAXPROCS(0))
	for i, frame := range frames {
		group.Go(func() error {
			grays[i] = frame.Grayscale()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return grays, nil
}

// LaplacianVariance scores a grayscale frame by the variance of its discrete
// Laplacian, an estimate of high-frequency edge energy. Frames with more
// in-focus detail score higher. Borders use reflect-101 mirroring so every
// pixel contributes.
func LaplacianVariance(gray GrayFrame) float64 {
	w, h := gray.Width, gray.Height
	if w == 0 || h == 0 {
		return 0
	}

	reflect := func(i, n int) int {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
		if i < 0 || n == 1 {
			return 0
		}
		return i
	}

	var sum, sumSq int64
	for y := 0; y < h; y++ {
		up := reflect(y-1, h) * w
		down := reflect(y+1, h) * w
		row := y * w
		for x := 0; x < w; x++ {
			left := reflect(x-1, w)
			right := reflect(x+1, w)
			lap := int64(gray.Pix[up+x]) + int64(gray.Pix[down+x]) +
				int64(gray.Pix[row+left]) + int64(gray.Pix[row+right]) -
				4*int64(gray.Pix[row+x])
			sum += lap
			sumSq += lap * lap
		}
	}

	n := float64(w * h)
	mean := float64(sum) / n
	return float64(sumSq)/n - mean*mean
}

// SelectSharpest returns the index of the sharpest frame: the stable argmax
// of LaplacianVariance. Ties, including fully degenerate all-equal clips,
// resolve to the lowest index.
func SelectSharpest(grays []GrayFrame) (int, error) {
	if len(grays) == 0 {
		return 0, ErrEmptySequence
	}

	best := 0
	bestScore := LaplacianVariance(grays[0])
	for i := 1; i < len(grays); i++ {
		if score := LaplacianVariance(grays[i]); score > bestScore {
			best = i
			bestScore = score
		}
	}
	return best, nil
}
