package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/edirooss/ptz-server/internal/device"
	"github.com/edirooss/ptz-server/internal/domain/ptz"
	"github.com/edirooss/ptz-server/internal/http/dto"
	"github.com/edirooss/ptz-server/internal/http/middleware"
	"github.com/edirooss/ptz-server/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultEventCount = 50

// PTZHandler exposes PTZService over REST. Every route except the fleet
// summary runs behind middleware.DeviceIdentity.
//
// Supported operations:
//   - GET    /device/information|capabilities|profiles|stream-uri
//   - GET    /ptz/status
//   - POST   /ptz/absolute-move|relative-move|continuous-move|stop
//   - POST   /ptz/set-home|goto-home|goto-preset
//   - GET    /ptz/presets            → list presets
//   - POST   /ptz/presets            → set (upsert) a preset
//   - POST   /ptz/presets/create     → create a preset, 409 on token clash
//   - PUT    /ptz/presets/{token}    → rename and/or move a preset
//   - DELETE /ptz/presets/{token}    → remove a preset
//   - GET    /ptz/tours              → list tours
//   - POST   /ptz/tours              → create a tour
//   - GET    /ptz/tours/{token}      → get a tour
//   - PUT    /ptz/tours/{token}      → modify a tour
//   - DELETE /ptz/tours/{token}      → delete a tour, stopping its run
//   - POST   /ptz/tours/{token}/operate → start | stop | pause | resume
//   - GET    /ptz/tours/{token}/status
//   - GET    /ptz/tours/{token}/events
//
// Error responses carry {"kind", "message"}; see statusFor.
type PTZHandler struct {
	log        *zap.Logger
	svc        *service.PTZService
	summarySvc *service.SummaryService
}

// NewPTZHandler constructs a PTZHandler instance.
func NewPTZHandler(log *zap.Logger, svc *service.PTZService, summarySvc *service.SummaryService) *PTZHandler {
	return &PTZHandler{
		log:        log.Named("ptz"),
		svc:        svc,
		summarySvc: summarySvc,
	}
}

// ----- Device -----

func (h *PTZHandler) GetDeviceInformation(c *gin.Context) {
	info, err := h.svc.GetDeviceInformation(identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *PTZHandler) GetCapabilities(c *gin.Context) {
	caps, err := h.svc.GetCapabilities(identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, caps)
}

func (h *PTZHandler) GetProfiles(c *gin.Context) {
	profiles, err := h.svc.GetProfiles(identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

// GetStreamURI handles GET /device/stream-uri?profile=<token>.
// An omitted profile selects the main stream.
func (h *PTZHandler) GetStreamURI(c *gin.Context) {
	uri, err := h.svc.GetStreamURI(identity(c), c.Query("profile"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, uri)
}

// ----- PTZ -----

func (h *PTZHandler) GetStatus(c *gin.Context) {
	st, err := h.svc.GetStatus(identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// AbsoluteMove handles POST /ptz/absolute-move.
//
// Status Codes:
//   - 200 OK → JSON status after the move
//   - 400 Bad Request → invalid JSON
//   - 422 Unprocessable Entity → position out of range
func (h *PTZHandler) AbsoluteMove(c *gin.Context) {
	var req dto.Move
	if !h.bind(c, &req, false) {
		return
	}
	st, err := h.svc.AbsoluteMove(identity(c), req.Vector(), req.Speed)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// RelativeMove handles POST /ptz/relative-move. The result is clamped to range.
func (h *PTZHandler) RelativeMove(c *gin.Context) {
	var req dto.Move
	if !h.bind(c, &req, false) {
		return
	}
	st, err := h.svc.RelativeMove(identity(c), req.Vector(), req.Speed)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *PTZHandler) ContinuousMove(c *gin.Context) {
	var req dto.Velocity
	if !h.bind(c, &req, false) {
		return
	}
	st, err := h.svc.ContinuousMove(identity(c), req.Vector())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Stop handles POST /ptz/stop. Always 200 for a resolvable device.
func (h *PTZHandler) Stop(c *gin.Context) {
	st, err := h.svc.Stop(identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *PTZHandler) SetHome(c *gin.Context) {
	home, err := h.svc.SetHome(identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"home": home})
}

func (h *PTZHandler) GotoHome(c *gin.Context) {
	var req dto.Goto
	if !h.bind(c, &req, true) {
		return
	}
	st, err := h.svc.GotoHome(identity(c), req.Speed)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *PTZHandler) GotoPreset(c *gin.Context) {
	var req dto.Goto
	if !h.bind(c, &req, false) {
		return
	}
	st, err := h.svc.GotoPreset(identity(c), req.Token, req.Speed)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ----- Presets -----

func (h *PTZHandler) ListPresets(c *gin.Context) {
	presets, err := h.svc.ListPresets(identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.Itoa(len(presets)))
	c.JSON(http.StatusOK, presets)
}

// SetPreset handles POST /ptz/presets (upsert).
func (h *PTZHandler) SetPreset(c *gin.Context) {
	var req dto.PresetSet
	if !h.bind(c, &req, true) {
		return
	}
	p, err := h.svc.SetPreset(identity(c), req.Token, req.Name, req.Position)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CreatePreset handles POST /ptz/presets/create.
//
// Status Codes:
//   - 201 Created → JSON of the preset
//   - 409 Conflict → token already in use
func (h *PTZHandler) CreatePreset(c *gin.Context) {
	var req dto.PresetSet
	if !h.bind(c, &req, true) {
		return
	}
	p, err := h.svc.CreatePreset(identity(c), req.Token, req.Name, req.Position)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Location", "/api/ptz/presets/"+p.Token)
	c.JSON(http.StatusCreated, p)
}

func (h *PTZHandler) UpdatePreset(c *gin.Context) {
	var req dto.PresetUpdate
	if !h.bind(c, &req, false) {
		return
	}
	p, err := h.svc.UpdatePreset(identity(c), c.Param("token"), req.Name, req.Position)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// RemovePreset handles DELETE /ptz/presets/{token}. Tours referencing the
// preset are left untouched.
func (h *PTZHandler) RemovePreset(c *gin.Context) {
	if err := h.svc.RemovePreset(identity(c), c.Param("token")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ----- Tours -----

func (h *PTZHandler) ListTours(c *gin.Context) {
	tours, err := h.svc.ListTours(identity(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.Itoa(len(tours)))
	c.JSON(http.StatusOK, dto.FromTours(tours))
}

func (h *PTZHandler) GetTour(c *gin.Context) {
	t, err := h.svc.GetTour(identity(c), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromTour(t))
}

// CreateTour handles POST /ptz/tours.
//
// Status Codes:
//   - 201 Created → JSON of the tour
//   - 400 Bad Request → invalid JSON
//   - 409 Conflict → token already in use
//   - 422 Unprocessable Entity → empty steps, bad ranges or unknown preset
func (h *PTZHandler) CreateTour(c *gin.Context) {
	var req dto.TourCreate
	if !h.bind(c, &req, false) {
		return
	}
	t, err := h.svc.CreateTour(identity(c), req.ToSpec())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Location", "/api/ptz/tours/"+t.Token)
	c.JSON(http.StatusCreated, dto.FromTour(t))
}

// ModifyTour handles PUT /ptz/tours/{token}. A running tour picks up the
// change at its next pass.
func (h *PTZHandler) ModifyTour(c *gin.Context) {
	var req dto.TourModify
	if !h.bind(c, &req, false) {
		return
	}
	t, err := h.svc.ModifyTour(identity(c), c.Param("token"), req.ToPatch())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromTour(t))
}

func (h *PTZHandler) DeleteTour(c *gin.Context) {
	if err := h.svc.DeleteTour(identity(c), c.Param("token")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// OperateTour handles POST /ptz/tours/{token}/operate.
//
// Status Codes:
//   - 200 OK → JSON tour status after the transition
//   - 404 Not Found → unknown tour
//   - 409 Conflict → action not allowed in the current state
//   - 422 Unprocessable Entity → unknown action
func (h *PTZHandler) OperateTour(c *gin.Context) {
	var req dto.TourOperate
	if !h.bind(c, &req, false) {
		return
	}
	action, err := ptz.ParseTourAction(req.Action)
	if err != nil {
		h.fail(c, err)
		return
	}
	st, err := h.svc.OperateTour(identity(c), c.Param("token"), action)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *PTZHandler) TourStatus(c *gin.Context) {
	st, err := h.svc.TourStatus(identity(c), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// TourEvents handles GET /ptz/tours/{token}/events?n=50, newest first.
func (h *PTZHandler) TourEvents(c *gin.Context) {
	n := defaultEventCount
	if s := c.Query("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			h.fail(c, ptz.InvalidArgument("tour.events", "invalid n %q", s))
			return
		}
		n = v
	}
	events, err := h.svc.TourEvents(identity(c), c.Param("token"), n)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// ------ Summary -----

// Summary handles GET /devices/summary. ?force=1 bypasses the cache.
func (h *PTZHandler) Summary(c *gin.Context) {
	if c.Query("force") == "1" {
		h.summarySvc.Invalidate()
	}

	res, err := h.summarySvc.Get(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"kind": "internal", "message": err.Error()})
		return
	}

	c.Header("X-Cache", map[bool]string{true: "HIT", false: "MISS"}[res.CacheHit])
	c.Header("X-Summary-Generated-At", strconv.FormatInt(res.GeneratedAt.UnixMilli(), 10))
	c.Header("X-Total-Count", strconv.Itoa(len(res.Data)))

	c.JSON(http.StatusOK, res.Data)
}

//
// ----- Helpers -----

// identity is set by middleware.DeviceIdentity; a zero value fails resolution.
func identity(c *gin.Context) device.Identity {
	id, _ := middleware.GetDeviceIdentity(c)
	return id
}

// bind decodes the JSON body into obj. With optional, an empty body is
// accepted and obj keeps its zero value.
func (h *PTZHandler) bind(c *gin.Context, obj any, optional bool) bool {
	err := decodeJSON(c.Request.Body, obj)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"kind": "bad_request", "message": err.Error()})
	return false
}

func decodeJSON(r io.Reader, obj any) error {
	if r == nil {
		return io.EOF
	}
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	return decoder.Decode(obj)
}

func (h *PTZHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	kind := string(ptz.KindOf(err))
	if kind == "" {
		kind = "internal"
	}
	if status >= http.StatusInternalServerError {
		middleware.RequestLogger(c, h.log).Error("request failed", zap.Error(err))
	}
	c.Error(err)
	c.JSON(status, gin.H{"kind": kind, "message": err.Error()})
}

// statusFor maps engine error kinds onto HTTP status codes.
func statusFor(err error) int {
	switch ptz.KindOf(err) {
	case ptz.KindNotFound:
		return http.StatusNotFound
	case ptz.KindInvalidTransition, ptz.KindConflict:
		return http.StatusConflict
	case ptz.KindInvalidArgument:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
