package utils

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

const (
	DescFetching    = "Fetching"
	DescDownloading = "Downloading"
)

// NewProgressBar creates a consistently styled progress bar.
// A negative total renders a spinner instead of a bar.
func NewProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	}

	if total < 0 {
		opts = append(opts,
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		)
	} else {
		opts = append(opts, progressbar.OptionShowIts())
	}

	return progressbar.NewOptions(total, opts...)
}
