// Package httputil provides HTTP plumbing for the remote store client.
//
// # Retry
//
// [Retry] re-runs an operation with exponential backoff when it fails with
// a [RetryableError]. Network errors and 5xx or 429 responses are wrapped so
// that they are retried; everything else is returned at once. A server's
// Retry-After header overrides the next delay:
//
//	err := httputil.Retry(ctx, httputil.Backoff{Attempts: 3, Delay: 200 * time.Millisecond}, func(int) error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    if httputil.IsRetryableStatus(resp.StatusCode) {
//	        return &httputil.RetryableError{Err: errStatus, After: httputil.RetryAfter(resp.Header)}
//	    }
//	    ...
//	})
//
// # Instrumentation
//
// [NewClient] returns an *http.Client whose transport reports every request
// to the observability HTTP hooks.
package httputil
