package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-emtrack/session"
)

var hookClient = &http.Client{Timeout: 10 * time.Second}

// ExportHandler returns the data the report renderer consumes.
func ExportHandler(c *gin.Context, sess *session.Session) {
	c.JSON(http.StatusOK, sess.Export())
}

// SendExportHook posts the export payload to the client's export hook.
func SendExportHook(c *gin.Context, sess *session.Session, clientURL string, log *zap.Logger) {
	if clientURL == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "CLIENT_URL not configured"})
		return
	}
	url := fmt.Sprintf("%s/api/exportHook", clientURL)

	payload, err := json.Marshal(sess.Export())
	if err != nil {
		log.Error("marshal export payload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build export"})
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build request"})
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hookClient.Do(req)
	if err != nil {
		log.Warn("export hook unreachable", zap.String("url", url), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send request"})
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to read response"})
		return
	}
	log.Info("export hook sent", zap.String("url", url), zap.Int("status", resp.StatusCode))

	c.JSON(resp.StatusCode, gin.H{
		"message":  "Export sent",
		"response": string(body),
	})
}
