package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/SnippetRelay/internal/config"
	"github.com/router-for-me/SnippetRelay/internal/gateway"
	"github.com/router-for-me/SnippetRelay/internal/logging"
	log "github.com/sirupsen/logrus"
)

// ChatHandler serves POST /api/chat in the deployment's operating mode.
type ChatHandler struct {
	svc  *gateway.Service
	mode string
}

// NewChatHandler constructs a ChatHandler for mode (config.ModeSummarize or config.ModeProxy).
func NewChatHandler(svc *gateway.Service, mode string) *ChatHandler {
	return &ChatHandler{svc: svc, mode: mode}
}

// Chat decodes the mode-specific body and runs it through the gateway.
func (h *ChatHandler) Chat(c *gin.Context) {
	subjectID := getSubjectID(c)
	if subjectID == "" {
		abortDetail(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	requestID := logging.GetGinRequestID(c)

	switch h.mode {
	case config.ModeProxy:
		var req gateway.ProxyRequest
		if errBind := c.ShouldBindJSON(&req); errBind != nil {
			abortDetail(c, http.StatusBadRequest, "invalid request body")
			return
		}
		resp, errProxy := h.svc.Proxy(c.Request.Context(), subjectID, requestID, req)
		if errProxy != nil {
			writeGatewayError(c, subjectID, errProxy)
			return
		}
		c.JSON(http.StatusOK, resp)
	default:
		var req gateway.SummarizeRequest
		if errBind := c.ShouldBindJSON(&req); errBind != nil {
			abortDetail(c, http.StatusBadRequest, "invalid request body")
			return
		}
		resp, errSummarize := h.svc.Summarize(c.Request.Context(), subjectID, requestID, req)
		if errSummarize != nil {
			writeGatewayError(c, subjectID, errSummarize)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func writeGatewayError(c *gin.Context, subjectID string, err error) {
	var quotaErr *gateway.QuotaExceededError
	var providerErr *gateway.ProviderError
	var usageErr *gateway.UsageLogError

	switch {
	case errors.Is(err, gateway.ErrInvalidRequest):
		abortDetail(c, http.StatusBadRequest, err.Error())
	case errors.As(err, &quotaErr):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"detail":    quotaErr.Error(),
			"plan_info": quotaErr.Decision,
		})
	case errors.As(err, &providerErr):
		abortDetail(c, http.StatusInternalServerError, providerErr.Error())
	case errors.As(err, &usageErr):
		log.WithError(usageErr.Err).WithField("subject_id", subjectID).Error("chat: usage not recorded after provider success")
		abortDetail(c, http.StatusInternalServerError, usageErr.Error())
	default:
		log.WithError(err).WithField("subject_id", subjectID).Error("chat: request failed")
		abortDetail(c, http.StatusInternalServerError, err.Error())
	}
}
