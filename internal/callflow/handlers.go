package callflow

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"callflow-platform/internal/campaign"
	"callflow-platform/internal/gateway"
	"callflow-platform/internal/voice"

	"github.com/gin-gonic/gin"
)

// Handler exposes the webhook surface the telephony gateway drives. Every
// endpoint accepts GET and POST with parameters as request values, matching
// how the gateway invokes callbacks.
type Handler struct {
	flow *Flow
	log  *slog.Logger
}

func NewHandler(flow *Flow, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{flow: flow, log: log}
}

func (h *Handler) Register(r gin.IRoutes) {
	register := func(path string, fn gin.HandlerFunc) {
		r.GET(path, fn)
		r.POST(path, fn)
	}
	register("/call/incoming", h.Incoming)
	register("/call/create", h.Create)
	register("/call/connection", h.Connection)
	register("/call/location_parse", h.LocationParse)
	register("/call/schedule_parse", h.ScheduleParse)
	register("/call/make_calls", h.MakeCalls)
	register("/call/make_single", h.MakeSingle)
	register("/call/complete", h.Complete)
	register("/call/status_callback", h.StatusCallback)
	register("/call/status_inbound", h.StatusInbound)
}

// requestValues merges query and form parameters, the way the gateway sends
// them interchangeably on GET and POST.
func requestValues(c *gin.Context) url.Values {
	_ = c.Request.ParseForm()
	return c.Request.Form
}

func (h *Handler) decode(c *gin.Context, inbound bool) (CallContext, campaign.Campaign, bool) {
	cc, camp, err := h.flow.Codec().Decode(c.Request.Context(), requestValues(c), inbound, c.ClientIP())
	if err != nil {
		h.abort(c, err)
		return CallContext{}, campaign.Campaign{}, false
	}
	return cc, camp, true
}

func (h *Handler) abort(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrMissingParameter), errors.Is(err, ErrUnknownCampaign),
		errors.Is(err, ErrNoNumbers), errors.Is(err, gateway.ErrPlaceCall):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrBlocked), errors.Is(err, ErrRateLimited):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		h.log.Error("call flow failure", "error", err, "path", c.FullPath())
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) renderVoice(c *gin.Context, resp *voice.Response) {
	body, err := resp.Render()
	if err != nil {
		h.abort(c, err)
		return
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(body))
}

func (h *Handler) Incoming(c *gin.Context) {
	cc, camp, ok := h.decode(c, true)
	if !ok {
		return
	}
	v := requestValues(c)
	resp, err := h.flow.Incoming(c.Request.Context(), cc, camp, v.Get("From"), v.Get("To"))
	if err != nil {
		h.abort(c, err)
		return
	}
	h.renderVoice(c, resp)
}

func (h *Handler) Create(c *gin.Context) {
	cc, camp, ok := h.decode(c, false)
	if !ok {
		return
	}
	v := requestValues(c)
	record, _ := strconv.ParseBool(v.Get("record"))
	result, err := h.flow.Create(c.Request.Context(), cc, camp, record, v.Get("ref"))
	if err != nil {
		h.abort(c, err)
		return
	}
	status := http.StatusOK
	if result.Call == "failed" {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

func (h *Handler) Connection(c *gin.Context) {
	cc, camp, ok := h.decode(c, false)
	if !ok {
		return
	}
	resp, err := h.flow.Connection(c.Request.Context(), cc, camp)
	if err != nil {
		h.abort(c, err)
		return
	}
	h.renderVoice(c, resp)
}

func (h *Handler) LocationParse(c *gin.Context) {
	cc, camp, ok := h.decode(c, false)
	if !ok {
		return
	}
	resp, err := h.flow.LocationParse(c.Request.Context(), cc, camp, requestValues(c).Get("Digits"))
	if err != nil {
		h.abort(c, err)
		return
	}
	h.renderVoice(c, resp)
}

func (h *Handler) ScheduleParse(c *gin.Context) {
	cc, camp, ok := h.decode(c, false)
	if !ok {
		return
	}
	resp, err := h.flow.ScheduleParse(c.Request.Context(), cc, camp, requestValues(c).Get("Digits"))
	if err != nil {
		h.abort(c, err)
		return
	}
	h.renderVoice(c, resp)
}

func (h *Handler) MakeCalls(c *gin.Context) {
	cc, camp, ok := h.decode(c, false)
	if !ok {
		return
	}
	resp, err := h.flow.MakeCalls(c.Request.Context(), cc, camp)
	if err != nil {
		h.abort(c, err)
		return
	}
	h.renderVoice(c, resp)
}

func (h *Handler) MakeSingle(c *gin.Context) {
	cc, camp, ok := h.decode(c, false)
	if !ok {
		return
	}
	resp, err := h.flow.MakeSingle(c.Request.Context(), cc, camp)
	if err != nil {
		h.abort(c, err)
		return
	}
	h.renderVoice(c, resp)
}

func (h *Handler) Complete(c *gin.Context) {
	cc, camp, ok := h.decode(c, false)
	if !ok {
		return
	}
	v := requestValues(c)
	duration, _ := strconv.Atoi(v.Get("DialCallDuration"))
	resp, err := h.flow.Complete(c.Request.Context(), cc, camp, v.Get("CallSid"), v.Get("DialCallStatus"), duration)
	if err != nil {
		h.abort(c, err)
		return
	}
	h.renderVoice(c, resp)
}

func (h *Handler) StatusCallback(c *gin.Context) {
	cc, _, ok := h.decode(c, false)
	if !ok {
		return
	}
	v := requestValues(c)
	result, err := h.flow.StatusCallback(c.Request.Context(), cc,
		v.Get("From"), v.Get("To"), v.Get("CallStatus"), v.Get("CallDuration"))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) StatusInbound(c *gin.Context) {
	cc, camp, ok := h.decode(c, true)
	if !ok {
		return
	}
	v := requestValues(c)
	result, err := h.flow.StatusInbound(c.Request.Context(), cc, camp,
		v.Get("From"), v.Get("CallStatus"), v.Get("CallDuration"))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
