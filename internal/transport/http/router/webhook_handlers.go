package router

import (
	"UpdateAegis/internal/core/port"
	"UpdateAegis/internal/service"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 5 << 20

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		return nil, fmt.Errorf("%w: 无法读取请求体: %v", port.ErrValidation, err)
	}
	return body, nil
}

func githubWebhookHandler(svc *service.IngestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readBody(c)
		if err != nil {
			respondError(c, err)
			return
		}
		event := c.GetHeader("X-GitHub-Event")
		slog.Info("收到 webhook", "event", event, "delivery", c.GetHeader("X-GitHub-Delivery"))

		res, err := svc.HandleWebhook(c.Request.Context(), event, c.GetHeader("X-Hub-Signature-256"), body)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type testWebhookRequest struct {
	Repository string `json:"repository" binding:"required"`
	TagName    string `json:"tag_name" binding:"required"`
}

// testWebhookHandler 按 {repository: "owner/repo", tag_name} 合成一个已发布的 release，跳过验签直接入库
func testWebhookHandler(svc *service.IngestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req testWebhookRequest
		if err := bindJSON(c, &req); err != nil {
			respondError(c, err)
			return
		}
		res, err := svc.IngestTestRelease(c.Request.Context(), req.Repository, req.TagName)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func webhookStatusHandler(svc *service.IngestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Status())
	}
}
