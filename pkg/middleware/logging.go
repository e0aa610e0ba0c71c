package middleware

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/buildflow/buildflow/pkg/composables"
	"github.com/buildflow/buildflow/pkg/configuration"
	"github.com/buildflow/buildflow/pkg/constants"
	"github.com/buildflow/buildflow/pkg/httpapi"
)

type LoggerOptions struct {
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodyLength   int
	RequestIDHeader string
	RealIPHeader    string
	Repanic         bool
}

func NewLoggerOptions(logRequestBody bool, logResponseBody bool, maxBodyLength int) LoggerOptions {
	return LoggerOptions{
		LogRequestBody:  logRequestBody,
		LogResponseBody: logResponseBody,
		MaxBodyLength:   maxBodyLength,
	}
}

// DefaultLoggerOptions skips bodies: upload payloads are binary workbooks.
func DefaultLoggerOptions(conf *configuration.Configuration) LoggerOptions {
	opts := NewLoggerOptions(false, false, 512)
	if conf != nil {
		opts.RequestIDHeader = conf.RequestIDHeader
		opts.RealIPHeader = conf.RealIPHeader
	}
	return opts
}

type responseCaptureWriter struct {
	http.ResponseWriter
	statusCode    int
	statusWritten bool
	body          *bytes.Buffer
	maxBody       int
}

func (w *responseCaptureWriter) WriteHeader(code int) {
	if !w.statusWritten {
		w.statusCode = code
		w.statusWritten = true
		w.ResponseWriter.WriteHeader(code)
	}
}

// Status returns the HTTP status code
func (w *responseCaptureWriter) Status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}

func (w *responseCaptureWriter) Write(b []byte) (int, error) {
	w.statusWritten = true
	if w.body != nil && w.body.Len() < w.maxBody {
		w.body.Write(b[:min(len(b), w.maxBody-w.body.Len())])
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseCaptureWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *responseCaptureWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}

func wrapResponseWriter(w http.ResponseWriter, captureBody bool, maxBody int) *responseCaptureWriter {
	rw := &responseCaptureWriter{ResponseWriter: w, maxBody: maxBody}
	if captureBody {
		rw.body = &bytes.Buffer{}
	}
	return rw
}

func getRealIP(r *http.Request, header string) string {
	if header != "" && len(r.Header.Get(header)) > 0 {
		return r.Header.Get(header)
	}
	return r.RemoteAddr
}

func getRequestID(r *http.Request, header string) string {
	if header != "" && len(r.Header.Get(header)) > 0 {
		return r.Header.Get(header)
	}
	return uuid.New().String()
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

// WithLogger assigns a request id, stores a request-scoped logger and the
// request params in the context, and recovers handler panics into a JSON
// 500 response.
func WithLogger(logger *logrus.Logger, opts LoggerOptions) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := getRequestID(r, opts.RequestIDHeader)
			ip := getRealIP(r, opts.RealIPHeader)

			fieldsLogger := logger.WithFields(logrus.Fields{
				"request-id": requestID,
				"path":       r.URL.Path,
				"method":     r.Method,
			})
			fieldsLogger.WithFields(logrus.Fields{
				"host":       r.Host,
				"ip":         ip,
				"user-agent": r.UserAgent(),
			}).Debug("request started")

			if opts.LogRequestBody && isJSON(r.Header.Get("Content-Type")) && r.Body != nil {
				buf := new(bytes.Buffer)
				if _, err := io.Copy(buf, r.Body); err != nil {
					fieldsLogger.WithError(err).Error("failed to read request-body")
					http.Error(w, "failed to read request-body", http.StatusBadRequest)
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(buf.Bytes()))
				fieldsLogger.WithField("request-body", truncate(buf.String(), opts.MaxBodyLength)).Debug("request-body captured")
			}

			wrapped := wrapResponseWriter(w, opts.LogResponseBody, opts.MaxBodyLength)
			ctx := context.WithValue(r.Context(), constants.RequestStart, start)
			ctx = composables.WithLogger(ctx, fieldsLogger)
			ctx = composables.WithParams(ctx, &composables.Params{
				IP:        ip,
				UserAgent: r.UserAgent(),
				RequestID: requestID,
				Request:   r,
				Writer:    wrapped,
			})
			w.Header().Set("X-Request-Id", requestID)

			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				fieldsLogger.WithFields(logrus.Fields{
					"panic":    recovered,
					"stack":    string(debug.Stack()),
					"duration": time.Since(start),
				}).Error("panic recovered in request handler")
				if !wrapped.statusWritten {
					_ = httpapi.WriteError(wrapped, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR",
						"internal server error", map[string]string{"request_id": requestID})
				}
				if opts.Repanic {
					panic(recovered)
				}
			}()

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			status := wrapped.Status()
			entry := fieldsLogger.WithFields(logrus.Fields{
				"duration":     time.Since(start),
				"status-code":  status,
				"status-class": status / 100,
			})
			if wrapped.body != nil && isJSON(wrapped.Header().Get("Content-Type")) {
				entry = entry.WithField("response-body", truncate(wrapped.body.String(), opts.MaxBodyLength))
			}
			if status >= http.StatusInternalServerError {
				entry.Error("request completed")
			} else {
				entry.Info("request completed")
			}
		})
	}
}
