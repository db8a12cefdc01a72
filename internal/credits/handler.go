package credits

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carbon-market/marketplace/marketplace-backend/internal/auth"
	"carbon-market/marketplace/marketplace-backend/internal/ledger/export"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the NGO endpoints. rg must already run auth.Authenticate.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/audit-req", h.AuditRequirement)

	rg.GET("/credits", h.ListCredits)
	rg.POST("/credits", h.CreateCredit)
	rg.PATCH("/credits/expire/:credit_id", h.ExpireCredit)
	rg.POST("/expire-req", h.VerifyBeforeExpire)

	rg.GET("/transactions", h.ListTransactions)
	rg.GET("/transactions/export", h.ExportTransactions)
}

// AuditRequirement handles GET /api/NGO/audit-req?amount=
func (h *Handler) AuditRequirement(c *gin.Context) {
	raw, present := c.GetQuery("amount")
	if !present || raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Missing 'amount' parameter"})
		return
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "'amount' must be an integer"})
		return
	}

	capacity, err := h.service.CheckAuditCapacity(c.Request.Context(), amount)
	if err != nil {
		h.fail(c, err)
		return
	}

	if !capacity.Sufficient {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"message":            fmt.Sprintf("Not Enough Auditors for %d tons of carbon. Maybe split the credit!", amount),
			"available_auditors": capacity.Available,
			"required_auditors":  capacity.Required,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":            "Enough auditors for the credit",
		"available_auditors": capacity.Available,
		"required_auditors":  capacity.Required,
	})
}

// CreateCredit handles POST /api/NGO/credits
func (h *Handler) CreateCredit(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)

	// A malformed body is reported by the service, after the caller has been checked.
	var in CreateCreditInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.logger.Debug("Unreadable credit payload", zap.Error(err))
		in = CreateCreditInput{decodeErr: bindMessage(err)}
	}

	credit, err := h.service.CreateCredit(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Credit created successfully",
		"credit":  credit,
	})
}

// ListCredits handles GET /api/NGO/credits
func (h *Handler) ListCredits(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)

	list, err := h.service.ListCredits(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ExpireCredit handles PATCH /api/NGO/credits/expire/:credit_id
func (h *Handler) ExpireCredit(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)

	creditID, err := strconv.ParseInt(c.Param("credit_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "'credit_id' must be an integer"})
		return
	}

	if err := h.service.ExpireCredit(c.Request.Context(), id, creditID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Credit expired successfully"})
}

type verifyRequest struct {
	Password string `json:"password"`
}

// VerifyBeforeExpire handles POST /api/NGO/expire-req
func (h *Handler) VerifyBeforeExpire(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)

	var req verifyRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.service.VerifyBeforeExpire(c.Request.Context(), id, req.Password); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User verified successfully! can proceed to expire credit"})
}

// ListTransactions handles GET /api/NGO/transactions
func (h *Handler) ListTransactions(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)

	txns, err := h.service.ListTransactions(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

// ExportTransactions handles GET /api/NGO/transactions/export?format=csv|xlsx|pdf
func (h *Handler) ExportTransactions(c *gin.Context) {
	id, _ := auth.IdentityFrom(c)

	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	txns, err := h.service.ListTransactions(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, "Marketplace transactions", txns); err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName("transactions")))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// bindMessage names the offending field when the body is JSON of the wrong shape.
func bindMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) || typeErr.Field == "" {
		return "Request body must be a JSON object"
	}
	want := "a string"
	switch typeErr.Type.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		want = "an integer"
	case reflect.Float32, reflect.Float64:
		want = "a number"
	}
	return fmt.Sprintf("'%s' must be %s", typeErr.Field, want)
}

// fail writes err as {"message": ...}. Driver errors stay in the log.
func (h *Handler) fail(c *gin.Context, err error) {
	var e *Error
	classified := errors.As(err, &e)

	if !classified || e.Kind == KindPersistence {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		msg := "Server error"
		if classified {
			msg += ": " + e.Message
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": msg})
		return
	}

	c.JSON(e.Kind.Status(), gin.H{"message": e.Message})
}
