package web

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"faceattend/internal/attendance"
	"faceattend/internal/auth"
	"faceattend/internal/facematch"
	"faceattend/internal/metrics"
)

// Handler serves the scan page, the admin pages and the scan API.
type Handler struct {
	attendance   *attendance.Service
	auth         *auth.Manager
	metrics      *metrics.Metrics
	cookieSecure bool
}

// New wires a handler. metrics may be nil.
func New(svc *attendance.Service, mgr *auth.Manager, m *metrics.Metrics, cookieSecure bool) *Handler {
	return &Handler{attendance: svc, auth: mgr, metrics: m, cookieSecure: cookieSecure}
}

// ---------- Scan ----------

func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", nil)
}

type scanRequest struct {
	Image string `json:"image" binding:"required"`
}

type scanResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ProcessScan matches the submitted frame and marks attendance on success.
func (h *Handler) ProcessScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, scanResponse{Status: "error", Message: "image field is required"})
		return
	}

	frame, err := facematch.DecodeDataURL(req.Image)
	if err != nil {
		log.Printf("scan rejected: %v", err)
		h.observeScan("invalid_frame", attendance.ScanResult{})
		c.JSON(http.StatusBadRequest, scanResponse{Status: "error", Message: "Invalid image."})
		return
	}

	res, err := h.attendance.ProcessScan(c.Request.Context(), frame)
	if err != nil {
		log.Printf("scan failed: %v", err)
		h.observeScan("failed", attendance.ScanResult{})
		c.JSON(http.StatusInternalServerError, scanResponse{Status: "error", Message: "Scan failed."})
		return
	}
	h.observeScan(string(res.Outcome), res)

	status := "error"
	if res.Success() {
		status = "success"
		log.Printf("scan %s: employee %d (distance %.3f)", res.Outcome, res.Employee.ID, res.Distance)
	}
	c.JSON(http.StatusOK, scanResponse{Status: status, Message: res.Message})
}

func (h *Handler) observeScan(outcome string, res attendance.ScanResult) {
	if h.metrics != nil {
		h.metrics.ObserveScan(outcome, res.Distance, res.Outcome == attendance.OutcomeMarked)
	}
}

// ---------- Session ----------

func (h *Handler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"Flash": popFlash(c), "Username": ""})
}

// Login checks the submitted credentials and starts an admin session.
func (h *Handler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	token, _, err := h.auth.Login(c.Request.Context(), username, password)
	if h.metrics != nil {
		h.metrics.ObserveLogin(err == nil)
	}
	if errors.Is(err, auth.ErrInvalidCredentials) {
		c.HTML(http.StatusOK, "login.html", gin.H{
			"Flash":    &Flash{Category: "error", Message: "Invalid Credentials"},
			"Username": username,
		})
		return
	}
	if err != nil {
		log.Printf("login failed: %v", err)
		c.String(http.StatusInternalServerError, "login unavailable")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, int(h.auth.TTL().Seconds()), "/", "", h.cookieSecure, true)
	c.Redirect(http.StatusFound, "/dashboard")
}

func (h *Handler) Logout(c *gin.Context) {
	token, _ := c.Cookie(auth.CookieName)
	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		log.Printf("logout failed: %v", err)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.cookieSecure, true)
	setFlash(c, "success", "You have been logged out.", h.cookieSecure)
	c.Redirect(http.StatusFound, "/login")
}

// ---------- Admin ----------

// Dashboard renders today's in/out summary for active employees.
func (h *Handler) Dashboard(c *gin.Context) {
	rows, err := h.attendance.TodaySummary(c.Request.Context())
	if err != nil {
		log.Printf("dashboard summary failed: %v", err)
		c.String(http.StatusInternalServerError, "could not load attendance")
		return
	}
	s, _ := auth.CurrentSession(c)
	c.HTML(http.StatusOK, "admin.html", gin.H{
		"Summary": rows,
		"Today":   h.attendance.Now().Format("Monday, 02 Jan 2006"),
		"Admin":   s.Username,
		"Flash":   popFlash(c),
	})
}

// DeleteEmployee deactivates an employee; history stays in the ledger.
func (h *Handler) DeleteEmployee(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.String(http.StatusNotFound, "404 page not found")
		return
	}
	emp, err := h.attendance.Deactivate(c.Request.Context(), id)
	switch {
	case errors.Is(err, attendance.ErrEmployeeNotFound):
	case err != nil:
		log.Printf("deactivate employee %d failed: %v", id, err)
		c.String(http.StatusInternalServerError, "could not remove employee")
		return
	default:
		log.Printf("employee %d deactivated", emp.ID)
		setFlash(c, "success", emp.Name+" removed.", h.cookieSecure)
	}
	c.Redirect(http.StatusFound, "/dashboard")
}

// DownloadReport sends the full ledger as a CSV attachment.
func (h *Handler) DownloadReport(c *gin.Context) {
	var buf bytes.Buffer
	if _, err := h.attendance.WriteReport(c.Request.Context(), &buf); err != nil {
		log.Printf("report failed: %v", err)
		c.String(http.StatusInternalServerError, "could not build report")
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveReport()
	}
	c.Header("Content-Disposition", "attachment; filename="+attendance.ReportFilename)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}
