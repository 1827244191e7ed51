package handler

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"storybook-ai-api/internal/infrastructure/persistence/redis"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	redis   *redis.Client // 会话驱动为 memory 时为 nil
	dataDir string
	version string
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(redisClient *redis.Client, dataDir, version string) *HealthHandler {
	return &HealthHandler{
		redis:   redisClient,
		dataDir: dataDir,
		version: version,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}

// Ready 就绪检查接口
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]*readinessCheck{
		"redis":   {Status: "disabled"},
		"storage": {Status: "unknown"},
	}
	ready := true

	if h.redis != nil {
		start := time.Now()
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"].Status = "down"
			checks["redis"].Error = err.Error()
			ready = false
		} else {
			checks["redis"].Status = "up"
		}
		checks["redis"].LatencyMs = time.Since(start).Milliseconds()
	}

	if _, err := os.Stat(h.dataDir); err != nil {
		checks["storage"].Status = "down"
		checks["storage"].Error = err.Error()
		ready = false
	} else {
		checks["storage"].Status = "up"
	}

	status := http.StatusOK
	resp := readinessResponse{Status: "ready", Checks: checks}
	if !ready {
		status = http.StatusServiceUnavailable
		resp.Status = "not_ready"
	}
	c.JSON(status, resp)
}

// Live 存活检查接口
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "alive"})
}
