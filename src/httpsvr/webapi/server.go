package webapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zhibo-copilot-go/src/configs"
	"zhibo-copilot-go/src/core/confidence"
	"zhibo-copilot-go/src/core/history"
	"zhibo-copilot-go/src/core/pipeline"
	"zhibo-copilot-go/src/core/pool"
	"zhibo-copilot-go/src/core/utils"
)

// AdminService 管理端HTTP服务，提供会话诊断、历史回放和性能反馈接口
type AdminService struct {
	logger  *utils.Logger
	config  *configs.Config
	manager *pipeline.Manager
	store   history.Store
	asrPool *pool.ASRPool
	server  *http.Server
}

// NewAdminService 构造函数
func NewAdminService(config *configs.Config, manager *pipeline.Manager,
	store history.Store, asrPool *pool.ASRPool, logger *utils.Logger) (*AdminService, error) {
	if manager == nil {
		return nil, fmt.Errorf("admin service requires session manager")
	}
	service := &AdminService{
		logger:  logger,
		config:  config,
		manager: manager,
		store:   store,
		asrPool: asrPool,
	}

	return service, nil
}

// Start 注册全部管理端路由
func (s *AdminService) Start(ctx context.Context, router *Router) error {
	router.API.POST("/auth/token", s.handleToken)
	router.API.GET("/health", s.handleHealth)

	secured := router.Secured
	if secured == nil {
		secured = router.API
	}
	secured.GET("/system/stats", s.handleSystemStats)
	secured.GET("/sessions", s.handleSessions)
	secured.GET("/sessions/:id", s.handleSessionDiagnostics)
	secured.GET("/sessions/:id/transcripts", s.handleTranscripts)
	secured.POST("/sessions/:id/feedback", s.handleFeedback)

	if s.logger != nil {
		s.logger.InfoTag("HTTP", "管理端路由注册完成")
	}
	return nil
}

// Run 启动HTTP监听，ctx取消时优雅关闭
func (s *AdminService) Run(ctx context.Context, engine *gin.Engine) error {
	addr := fmt.Sprintf("%s:%d", s.config.Web.IP, s.config.Web.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.InfoTag("HTTP", fmt.Sprintf("管理端服务启动 http://%s", addr))
		}
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("管理端服务关闭失败: %v", err)
		}
		if s.logger != nil {
			s.logger.InfoTag("HTTP", "管理端服务已关闭")
		}
		return nil
	case err := <-errCh:
		return err
	}
}

type tokenRequest struct {
	AuthKey  string `json:"auth_key" binding:"required"`
	ClientID string `json:"client_id"`
}

// handleToken 用预共享密钥换取JWT
func (s *AdminService) handleToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "请求参数错误", gin.H{"error": err.Error()})
		return
	}
	if req.AuthKey != s.config.Web.AuthKey {
		respondError(c, http.StatusUnauthorized, "认证密钥错误", nil)
		return
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = "console"
	}
	ttl := time.Duration(s.config.Web.TokenHour) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	token, err := GenerateJWT(s.config.Web.AuthKey, clientID, ttl)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "令牌签发失败", nil)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(ttl.Seconds()),
	}, "")
}

func (s *AdminService) handleHealth(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{
		"status":   "running",
		"sessions": s.manager.Count(),
	}, "")
}

// handleSessions 活跃会话列表
func (s *AdminService) handleSessions(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{
		"active": s.manager.IDs(),
		"count":  s.manager.Count(),
	}, "")
}

// handleSessionDiagnostics 单会话流水线诊断快照
func (s *AdminService) handleSessionDiagnostics(c *gin.Context) {
	id := c.Param("id")
	session, ok := s.manager.Get(id)
	if !ok {
		respondError(c, http.StatusNotFound, "会话不存在或已结束", nil)
		return
	}
	respondSuccess(c, http.StatusOK, session.Diagnostics(), "")
}

// handleTranscripts 会话历史字幕回放，离线会话也可查询
func (s *AdminService) handleTranscripts(c *gin.Context) {
	if s.store == nil {
		respondError(c, http.StatusServiceUnavailable, "历史存储未启用", nil)
		return
	}
	id := c.Param("id")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil {
			respondError(c, http.StatusBadRequest, "limit参数错误", nil)
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	entries, err := s.store.Recent(ctx, id, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "历史查询失败", gin.H{"error": err.Error()})
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"session_id":  id,
		"transcripts": entries,
		"count":       len(entries),
	}, "")
}

// handleFeedback 接收离线标注的性能反馈，驱动阈值自适应
func (s *AdminService) handleFeedback(c *gin.Context) {
	id := c.Param("id")
	session, ok := s.manager.Get(id)
	if !ok {
		respondError(c, http.StatusNotFound, "会话不存在或已结束", nil)
		return
	}

	var sample confidence.PerformanceSample
	if err := c.ShouldBindJSON(&sample); err != nil {
		respondError(c, http.StatusBadRequest, "请求参数错误", gin.H{"error": err.Error()})
		return
	}
	session.AddPerformanceFeedback(sample)
	respondSuccess(c, http.StatusOK, gin.H{"session_id": id}, "反馈已记录")
}
