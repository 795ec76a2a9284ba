package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"callflow-platform/internal/admin"
	"callflow-platform/internal/audit"
	"callflow-platform/internal/auth"
	"callflow-platform/internal/campaign"
	"callflow-platform/internal/reporting"
	"callflow-platform/internal/schedule"
	"callflow-platform/internal/session"

	"github.com/gin-gonic/gin"
)

// Handlers groups the operator API handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Campaigns campaign.Repository
	Blocklist admin.Blocklist
	Schedules schedule.Repository
	Reports   *reporting.Service
	Audit     *audit.Service
	Sessions  *session.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Campaigns ---

func (h Handlers) ListCampaigns(c *gin.Context) {
	list, err := h.Campaigns.List(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaigns": list})
}

func (h Handlers) GetCampaign(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	camp, err := h.Campaigns.GetByID(c.Request.Context(), id)
	if errors.Is(err, campaign.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign lookup failed"})
		return
	}
	c.JSON(http.StatusOK, camp)
}

type statusChangeRequest struct {
	Status string `json:"status"`
}

// UpdateCampaignStatus flips a campaign between active, paused and archived.
// RBAC: admin or operator. Every change lands in the audit log.
func (h Handlers) UpdateCampaignStatus(c *gin.Context) {
	id, ok := campaignID(c)
	if !ok {
		return
	}
	var req statusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	status := campaign.Status(req.Status)
	switch status {
	case campaign.StatusActive, campaign.StatusPaused, campaign.StatusArchived:
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "status must be active, paused or archived"})
		return
	}

	err := h.Campaigns.UpdateStatus(c.Request.Context(), id, status)
	if errors.Is(err, campaign.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "status update failed"})
		return
	}

	h.auditAction(c, id, "campaign status set to "+req.Status)
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

// CampaignStats aggregates dial attempts for one campaign over a time range.
// Defaults to the trailing 30 days.
func (h Handlers) CampaignStats(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	id, ok := campaignID(c)
	if !ok {
		return
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		to = t
	}

	summary, err := h.Reports.AttemptsSummary(c.Request.Context(), reporting.AttemptsSummaryRequest{
		CampaignID: id,
		Range:      reporting.TimeRange{From: from, To: to},
	})
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats aggregation failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListSubscriptions returns the reminder opt-ins collected for a campaign.
// Subscribers are identified by phone fingerprint only.
func (h Handlers) ListSubscriptions(c *gin.Context) {
	if h.Schedules == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "schedules not configured"})
		return
	}
	id, ok := campaignID(c)
	if !ok {
		return
	}
	subs, err := h.Schedules.ListByCampaign(c.Request.Context(), id)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "subscription listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// --- Blocklist ---

type blockPhoneRequest struct {
	// Phone is the raw caller number; only its fingerprint is stored.
	Phone string `json:"phone"`
}

type blockIPRequest struct {
	IP string `json:"ip"`
}

func (h Handlers) BlockPhone(c *gin.Context)   { h.phoneBlockChange(c, true) }
func (h Handlers) UnblockPhone(c *gin.Context) { h.phoneBlockChange(c, false) }

func (h Handlers) phoneBlockChange(c *gin.Context, block bool) {
	if h.Blocklist == nil || h.Sessions == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "blocklist not configured"})
		return
	}
	var req blockPhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Phone == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone required"})
		return
	}
	phoneHash := h.Sessions.HashPhone(req.Phone)

	var err error
	action := "phone number blocked"
	if block {
		err = h.Blocklist.BlockPhone(c.Request.Context(), phoneHash)
	} else {
		err = h.Blocklist.UnblockPhone(c.Request.Context(), phoneHash)
		action = "phone number unblocked"
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "blocklist update failed"})
		return
	}

	h.auditBlocklist(c, phoneHash, action)
	c.JSON(http.StatusOK, gin.H{"phone_hash": phoneHash, "blocked": block})
}

func (h Handlers) BlockIP(c *gin.Context)   { h.ipBlockChange(c, true) }
func (h Handlers) UnblockIP(c *gin.Context) { h.ipBlockChange(c, false) }

func (h Handlers) ipBlockChange(c *gin.Context, block bool) {
	if h.Blocklist == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "blocklist not configured"})
		return
	}
	var req blockIPRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IP == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "ip required"})
		return
	}

	var err error
	action := "ip address blocked: " + req.IP
	if block {
		err = h.Blocklist.BlockIP(c.Request.Context(), req.IP)
	} else {
		err = h.Blocklist.UnblockIP(c.Request.Context(), req.IP)
		action = "ip address unblocked: " + req.IP
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "blocklist update failed"})
		return
	}

	h.auditBlocklist(c, "", action)
	c.JSON(http.StatusOK, gin.H{"ip": req.IP, "blocked": block})
}

// AddAdminNumber exempts a caller fingerprint from blocklist and rate-limit
// checks. RBAC: admin only.
func (h Handlers) AddAdminNumber(c *gin.Context) {
	if h.Blocklist == nil || h.Sessions == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "blocklist not configured"})
		return
	}
	var req blockPhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Phone == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone required"})
		return
	}
	phoneHash := h.Sessions.HashPhone(req.Phone)
	if err := h.Blocklist.AddAdmin(c.Request.Context(), phoneHash); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "blocklist update failed"})
		return
	}
	h.auditBlocklist(c, phoneHash, "admin number added")
	c.JSON(http.StatusOK, gin.H{"phone_hash": phoneHash, "admin": true})
}

// --- helpers ---

func campaignID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "campaign id must be a positive integer"})
		return 0, false
	}
	return id, true
}

// auditAction records an operator change. Audit failures never fail the
// request that caused them.
func (h Handlers) auditAction(c *gin.Context, campaignID int64, message string) {
	if h.Audit == nil {
		return
	}
	userID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	_ = h.Audit.LogOperatorAction(c.Request.Context(), userID, role, c.ClientIP(), message, campaignID, "")
}

func (h Handlers) auditBlocklist(c *gin.Context, phoneHash, message string) {
	if h.Audit == nil {
		return
	}
	userID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	_ = h.Audit.LogBlocklistChange(c.Request.Context(), userID, role, c.ClientIP(), phoneHash, message)
}
