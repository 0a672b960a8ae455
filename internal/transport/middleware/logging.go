package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	internal "github.com/frahmantamala/payment-portal/internal"
)

const (
	maxLoggedBody = 4 << 10
	filtered      = "[FILTERED]"
)

// sensitiveFields are matched as substrings of lower-cased header, JSON and form keys.
var sensitiveFields = []string{
	"password",
	"token",
	"authorization",
	"cookie",
	"secret",
	"api_key",
	"session",
	"credential",
}

// probePaths are logged at debug so health checks and scrapes do not flood the log.
var probePaths = map[string]bool{
	"/healthz":    true,
	"/metrics":    true,
	"/api/ping":   true,
	"/api/health": true,
}

func LoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			traceID := internal.TraceIDFromContext(r.Context())
			quiet := probePaths[r.URL.Path]

			logRequest(r.Context(), logger, r, traceID, quiet)

			ww := &responseWriter{
				ResponseWriter: w,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(ww, r)

			logResponse(r.Context(), logger, ww, time.Since(start), traceID, quiet)
		})
	}
}

// responseWriter keeps the status and the head of the body for the response log.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rem := maxLoggedBody - rw.body.Len(); rem > 0 {
		if len(b) > rem {
			rw.body.Write(b[:rem])
		} else {
			rw.body.Write(b)
		}
	}
	return rw.ResponseWriter.Write(b)
}

func logRequest(ctx context.Context, logger *slog.Logger, r *http.Request, traceID string, quiet bool) {
	level := slog.LevelInfo
	if quiet {
		level = slog.LevelDebug
	}
	if !logger.Enabled(ctx, level) {
		return
	}

	logger.Log(ctx, level, "incoming request",
		"trace_id", traceID,
		"method", r.Method,
		"path", r.URL.Path,
		"query", r.URL.RawQuery,
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
		"headers", filterSensitiveHeaders(r.Header),
		"body", requestBody(r),
	)
}

// requestBody returns a loggable copy of the body and restores r.Body.
func requestBody(r *http.Request) string {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		return "[multipart]"
	}
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}

	raw, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return "[unreadable]"
	}
	if len(raw) > maxLoggedBody {
		raw = raw[:maxLoggedBody]
	}

	if mediaType == "application/x-www-form-urlencoded" {
		return filterFormBody(raw)
	}
	return filterSensitiveBody(raw)
}

func logResponse(ctx context.Context, logger *slog.Logger, rw *responseWriter, duration time.Duration, traceID string, quiet bool) {
	statusCode := rw.statusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	level := slog.LevelInfo
	switch {
	case statusCode >= http.StatusInternalServerError:
		level = slog.LevelError
	case statusCode >= http.StatusBadRequest:
		level = slog.LevelWarn
	case quiet:
		level = slog.LevelDebug
	}

	body := ""
	if strings.HasPrefix(rw.Header().Get("Content-Type"), "application/json") {
		body = filterSensitiveBody(rw.body.Bytes())
	}

	logger.Log(ctx, level, "response",
		"trace_id", traceID,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
		"content_type", rw.Header().Get("Content-Type"),
		"location", rw.Header().Get("Location"),
		"body", body,
	)
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, field := range sensitiveFields {
		if strings.Contains(key, field) {
			return true
		}
	}
	return false
}

func filterSensitiveHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitive(name) {
			out[name] = filtered
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// filterFormBody masks sensitive fields of a url-encoded form.
func filterFormBody(body []byte) string {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return "[unparseable form]"
	}
	for key := range values {
		if isSensitive(key) {
			values[key] = []string{filtered}
		}
	}
	return values.Encode()
}

// filterSensitiveBody masks sensitive fields of a JSON body. Non-JSON bodies
// are dropped entirely when they mention a sensitive field.
func filterSensitiveBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		if isSensitive(string(body)) {
			return "[FILTERED - Contains sensitive data]"
		}
		return string(body)
	}

	out, err := json.Marshal(filterSensitiveJSON(data))
	if err != nil {
		return "[ERROR - Failed to marshal filtered JSON]"
	}
	return string(out)
}

func filterSensitiveJSON(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				out[key] = filtered
				continue
			}
			out[key] = filterSensitiveJSON(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = filterSensitiveJSON(item)
		}
		return out
	default:
		return v
	}
}
