package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"masader/internal/engine"
	"masader/internal/errors"
	"masader/internal/metrics"
	"masader/internal/models"
)

// NotLoaded is returned by every read path until the first snapshot loads.
const NotLoaded = "Datasets are not loaded yet."

type Handler struct {
	store   *engine.Store
	coord   *engine.Coordinator
	version string
}

func NewHandler(store *engine.Store, coord *engine.Coordinator, version string) *Handler {
	return &Handler{store: store, coord: coord, version: version}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	datasets := e.Group("/datasets")
	datasets.GET("", h.GetDatasets)
	datasets.GET("/schema", h.GetSchema)
	datasets.GET("/tags", h.GetTags)
	datasets.GET("/:index", h.GetDataset)

	e.GET("/refresh", h.Refresh)
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// --- HANDLERS ---

// getPaginationParams falls back to the defaults on missing or unparsable
// values. Out of range values are left for Paginate to reject.
func getPaginationParams(c echo.Context, defaultSize int) (int, int) {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil {
		page = 1
	}
	size, err := strconv.Atoi(c.QueryParam("size"))
	if err != nil {
		size = defaultSize
	}
	return page, size
}

// getFeatures parses the comma separated "features" parameter.
func getFeatures(c echo.Context) []string {
	raw := c.QueryParam("features")
	if raw == "" {
		return nil
	}
	var fields []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// snapshot captures the snapshot a request works on for its whole duration.
func (h *Handler) snapshot() (*models.Snapshot, error) {
	snap := h.store.Snapshot()
	if snap == nil {
		return nil, errors.New(errors.ErrUnavailable, NotLoaded)
	}
	return snap, nil
}

// GetDatasets pages through the catalog, then filters and projects the page.
func (h *Handler) GetDatasets(c echo.Context) error {
	snap, err := h.snapshot()
	if err != nil {
		return err
	}
	page, size := getPaginationParams(c, len(snap.Records))

	records, err := engine.Paginate(snap.Records, page, size)
	if err != nil {
		return err
	}

	records, err = engine.Run(c.Request().Context(), records, engine.Query{
		Filter: c.QueryParam("query"),
		Fields: getFeatures(c),
		Schema: snap.Schema,
	})
	if err != nil {
		if errors.Is(err, errors.ErrQuery) {
			metrics.CounterQueryErrors.Inc()
		}
		return err
	}
	return c.JSON(http.StatusOK, records)
}

// GetDataset returns one record by its 1-based position.
func (h *Handler) GetDataset(c echo.Context) error {
	snap, err := h.snapshot()
	if err != nil {
		return err
	}
	// A non-numeric index is reported like any other out of range index.
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		index = 0
	}
	record, err := engine.GetByIndex(snap.Records, index, getFeatures(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

func (h *Handler) GetTags(c echo.Context) error {
	snap, err := h.snapshot()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, engine.Project(snap.Tags, getFeatures(c)))
}

func (h *Handler) GetSchema(c echo.Context) error {
	snap, err := h.snapshot()
	if err != nil {
		return err
	}
	schema := snap.Schema
	if schema == nil {
		schema = models.Schema{}
	}
	return c.JSON(http.StatusOK, schema)
}

// Refresh triggers the refresh job and reloads the snapshot. Without
// wait=true the response reflects the cache contents from before the job.
func (h *Handler) Refresh(c echo.Context) error {
	wait, _ := strconv.ParseBool(c.QueryParam("wait"))
	snap, err := h.coord.Refresh(c.Request().Context(), wait)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, engine.Message(snap))
}

type health struct {
	models.Status
	Version string `json:"version"`
}

func (h *Handler) Health(c echo.Context) error {
	st := health{Status: h.store.Status(), Version: h.version}
	if !st.Loaded {
		return c.JSON(http.StatusServiceUnavailable, st)
	}
	return c.JSON(http.StatusOK, st)
}
