package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/AngelCh415/adforecast/internal/utils"
)

// GetJSONWithRetry retries transport errors, 429 and 5xx responses with
// exponential backoff; other 4xx responses fail immediately.
func GetJSONWithRetry(ctx context.Context, c HTTPClient, url string, dst any) error {
	var permanent error
	err := utils.NewBackoff(100*time.Millisecond, 2).Do(ctx, func(int) error {
		err := fetchFeed(ctx, c, url, dst)
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			permanent = err
			return nil
		}
		return err
	})
	if permanent != nil {
		return permanent
	}
	return err
}
