package controllers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/BerniceZTT/posalpro_end/config"
	"github.com/BerniceZTT/posalpro_end/service"
	"github.com/BerniceZTT/posalpro_end/utils"

	"github.com/gin-gonic/gin"
)

// PingFunc 数据库连通性检查
type PingFunc func(ctx context.Context) error

// HealthController 健康检查接口
type HealthController struct {
	projector   *service.SelectiveHydrationProjector
	ping        PingFunc
	version     string
	environment string
	startedAt   time.Time
	now         func() time.Time
}

// NewHealthController 创建健康检查接口
func NewHealthController(projector *service.SelectiveHydrationProjector, ping PingFunc, version, environment string) *HealthController {
	return &HealthController{
		projector:   projector,
		ping:        ping,
		version:     version,
		environment: environment,
		startedAt:   time.Now(),
		now:         time.Now,
	}
}

// GetHealth 健康检查，支持 ?fields= 只返回部分字段
func (hc *HealthController) GetHealth(c *gin.Context) {
	result, err := hc.projector.Project(config.EntityHealth, FieldsParam(c), utils.GetAuthContext(c))
	if err != nil {
		utils.HandleError(c, utils.CreateBadRequestError(err.Error()))
		return
	}

	report, healthy := hc.report(c.Request.Context())
	data := report
	if result.Select != nil {
		data = make(gin.H, len(result.Fields))
		for _, f := range result.Fields {
			data[f] = report[f]
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	meta := utils.ResponseMeta(c)
	meta["optimizationMetrics"] = result.OptimizationMetrics
	c.JSON(status, gin.H{
		"success": healthy,
		"data":    data,
		"meta":    meta,
	})
}

// report 生成完整的健康信息
func (hc *HealthController) report(ctx context.Context) (gin.H, bool) {
	now := hc.now()

	dbStatus := gin.H{"status": "up"}
	healthy := true
	if hc.ping != nil {
		start := time.Now()
		if err := hc.ping(ctx); err != nil {
			utils.LogError(err, nil, "数据库健康检查失败")
			dbStatus = gin.H{"status": "down", "error": err.Error()}
			healthy = false
		}
		dbStatus["latencyMs"] = float64(time.Since(start).Microseconds()) / 1000
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status := "healthy"
	if !healthy {
		status = "degraded"
	}

	return gin.H{
		"status":    status,
		"timestamp": now.UTC().Format(time.RFC3339),
		"uptime":    now.Sub(hc.startedAt).Seconds(),
		"memory": gin.H{
			"allocMB":     bytesToMB(mem.Alloc),
			"heapInuseMB": bytesToMB(mem.HeapInuse),
			"sysMB":       bytesToMB(mem.Sys),
		},
		"cpu": gin.H{
			"cores":      runtime.NumCPU(),
			"goroutines": runtime.NumGoroutine(),
		},
		"database": dbStatus,
		"services": gin.H{
			"mongodb": dbStatus["status"],
			"api":     "up",
		},
		"version":     hc.version,
		"environment": hc.environment,
	}, healthy
}

func bytesToMB(b uint64) float64 {
	return float64(b) / (1 << 20)
}
