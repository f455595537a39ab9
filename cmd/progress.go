package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ginjaninja78/warranty-orders/internal/batch"
)

func newProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
}

// rowProgress adapts a bar to batch.ProgressFunc. The bar is sized on the
// first callback, when the row total is known. finish is safe to call when
// no row was reported.
func rowProgress(w io.Writer, description string) (fn batch.ProgressFunc, finish func()) {
	var (
		mu   sync.Mutex
		bar  *progressbar.ProgressBar
		last int
	)

	fn = func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = newProgressBar(w, total, description)
		}
		// Chunks report concurrently; never move backwards.
		if done > last {
			last = done
			_ = bar.Set(done)
		}
	}

	finish = func() {
		mu.Lock()
		defer mu.Unlock()
		if bar != nil {
			_ = bar.Finish()
		}
	}
	return fn, finish
}
