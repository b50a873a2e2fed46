package api

import (
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"masader/internal/errors"
	"masader/internal/logger"
	"masader/internal/metrics"
)

// Options configures the echo instance built by NewServer.
type Options struct {
	Origins []string
	Logger  logger.Logger
	// AccessLog enables echo's request logger.
	AccessLog bool
}

// NewServer returns an echo instance serving h.
func NewServer(h *Handler, opts Options) *echo.Echo {
	l := opts.Logger
	if l == nil {
		l = logger.NopLogger
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = JSONSerializer{}
	e.HTTPErrorHandler = ErrorHandler(l)

	origins := opts.Origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}))
	e.Use(middleware.Recover())
	if opts.AccessLog {
		e.Use(middleware.Logger())
	}
	e.Use(Metrics)

	h.RegisterRoutes(e)
	return e
}

// ErrorHandler writes err as a JSON string with the status matching its
// code. Uncoded errors are logged and reported as 500.
func ErrorHandler(l logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var status int
		var msg string
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			msg = http.StatusText(he.Code)
			if m, ok := he.Message.(string); ok {
				msg = m
			}
		} else {
			status = StatusOf(err)
			msg = errors.Message(err)
			if status == http.StatusInternalServerError {
				msg = err.Error()
				l.Errorf("%s %s: %v", c.Request().Method, c.Request().URL, err)
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, msg)
		}
		if err != nil {
			l.Errorf("writing error response: %v", err)
		}
	}
}

// StatusOf maps an error code to an HTTP status.
func StatusOf(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrQuery:
		return http.StatusBadRequest
	case errors.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Metrics records the latency of every request by route and status.
func Metrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		metrics.HistogramRequestDuration.WithLabelValues(
			c.Request().Method,
			route,
			strconv.Itoa(c.Response().Status),
		).Observe(time.Since(start).Seconds())
		return nil
	}
}

// JSONSerializer encodes responses with goccy/go-json.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (JSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := json.NewDecoder(c.Request().Body).Decode(i)
	if ute, ok := err.(*json.UnmarshalTypeError); ok {
		return echo.NewHTTPError(http.StatusBadRequest,
			"Unmarshal type error: expected="+ute.Type.String()+", got="+ute.Value+", field="+ute.Field+", offset="+strconv.FormatInt(ute.Offset, 10)).SetInternal(err)
	} else if se, ok := err.(*json.SyntaxError); ok {
		return echo.NewHTTPError(http.StatusBadRequest,
			"Syntax error: offset="+strconv.FormatInt(se.Offset, 10)+", error="+se.Error()).SetInternal(err)
	}
	return err
}
