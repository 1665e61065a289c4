// Package retry implements the retry state machine's delay computation and
// outcome classification. It has no knowledge of HTTP transport;
// internal/httpx calls into it once an attempt has produced a network error
// or an HTTP status.
package retry

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/pilot-net/bulkfetch/internal/model"
)

// Cap is the maximum delay between attempts, regardless of strategy.
const Cap = 30 * time.Second

// RateLimitCeiling bounds how long a Retry-After hint is honored for.
const RateLimitCeiling = 60 * time.Second

// Outcome is the result of classifying a single attempt.
type Outcome struct {
	Class     model.Classification
	Status    int
	RetryHint time.Duration // set only for ClassRateLimited when Retry-After was present
}

// ClassifyError classifies a transport-level failure (no HTTP response was
// received).
func ClassifyError(err error) Outcome {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Outcome{Class: model.ClassTimeout}
	}
	var certErr x509.CertificateInvalidError
	var authErr x509.UnknownAuthorityError
	var hdrErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &authErr) || errors.As(err, &hdrErr) {
		return Outcome{Class: model.ClassTLS}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Outcome{Class: model.ClassNetwork}
	}
	return Outcome{Class: model.ClassNetwork}
}

// ClassifyResponse classifies a received HTTP response given the policy's
// retry-eligible status set.
func ClassifyResponse(resp *http.Response, retryOn map[int]bool) Outcome {
	status := resp.StatusCode
	if status == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if d, ok := parseRetryAfter(ra); ok {
				return Outcome{Class: model.ClassRateLimited, Status: status, RetryHint: d}
			}
		}
	}
	if retryOn[status] {
		return Outcome{Class: model.ClassTransient, Status: status}
	}
	if status >= 200 && status < 300 {
		return Outcome{Class: model.ClassOK, Status: status}
	}
	return Outcome{Class: model.ClassPermanent, Status: status}
}

func parseRetryAfter(v string) (time.Duration, bool) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// ShouldRetry decides, given the policy and the current attempt count
// (attempts already made, 0-indexed before this one), whether another
// attempt should be made. The retry predicate, if supplied, overrides
// class-based rules but remains bounded by MaxRetries.
func ShouldRetry(policy model.RetryPolicy, outcome Outcome, attempt int) bool {
	if policy.MaxRetries == model.FireAndForget {
		return false
	}
	if outcome.Class == model.ClassOK {
		return false
	}
	if attempt >= policy.MaxRetries {
		return false
	}
	if policy.RetryPredicate != nil {
		return policy.RetryPredicate(outcome.Class, attempt)
	}
	if outcome.Class == model.ClassPermanent {
		return false
	}
	return outcome.Class.Retryable()
}

// Delay computes the inter-attempt delay using decorrelated jitter.
// prevDelay is the delay used before the previous attempt (zero on the
// very first retry, which seeds decorrelated jitter with BaseDelay).
func Delay(policy model.RetryPolicy, outcome Outcome, prevDelay time.Duration) time.Duration {
	if outcome.Class == model.ClassRateLimited && outcome.RetryHint > 0 {
		if outcome.RetryHint > RateLimitCeiling {
			return RateLimitCeiling
		}
		return outcome.RetryHint
	}
	if policy.StaticDelay {
		return policy.BaseDelay
	}
	base := policy.BaseDelay
	if prevDelay <= 0 {
		prevDelay = base
	}
	hi := prevDelay * 3
	if hi <= base {
		hi = base + 1
	}
	d := base + time.Duration(rand.Int63n(int64(hi-base)))
	if d > Cap {
		d = Cap
	}
	return d
}
