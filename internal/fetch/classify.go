package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/pageharvest/pageharvest/internal/scraper"
)

// Classify maps a transport-level failure to the fetch error taxonomy:
// deadline and dial timeouts become Timeout, everything else Unreachable.
// Already-classified errors pass through untouched.
func Classify(url string, err error) error {
	var fe *scraper.FetchError
	if errors.As(err, &fe) {
		return err
	}
	if IsTimeout(err) {
		return scraper.NewFetchError(scraper.FetchTimeout, url, err)
	}
	return scraper.NewFetchError(scraper.FetchUnreachable, url, err)
}

// WaitError classifies a failed wait for selector. Browser strategies use it
// so a deadline hit while waiting reports ElementWait, not Timeout.
func WaitError(url, selector string, err error) error {
	return scraper.NewFetchError(scraper.FetchElementWait, url,
		fmt.Errorf("wait for %q: %w", selector, err))
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
