package metrics

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// roundTripperFunc adapts a function to http.RoundTripper.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// InstrumentTransport returns a RoundTripper that records request metrics for source.
// Transport errors are recorded with the "error" status.
func InstrumentTransport(reg *Registry, source string, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		reg.InFlightInc()
		defer reg.InFlightDec()

		start := time.Now()
		resp, err := next.RoundTrip(req)

		status := 0
		if err == nil {
			status = resp.StatusCode
		}
		reg.RecordRequest(source, status, time.Since(start).Seconds())
		return resp, err
	})
}

// LogTransport returns a RoundTripper that logs every request with its outcome.
func LogTransport(logger *zap.Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(req)

		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			logger.Warn("http request failed", append(fields, zap.Error(err))...)
			return resp, err
		}

		logger.Debug("http request", append(fields, zap.Int("status", resp.StatusCode))...)
		return resp, err
	})
}
