package router

import (
	"context"

	"resume-match-go/internal/api/handler"
	"resume-match-go/internal/config"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, cfg *config.ServerConfig, matchHandler *handler.MatchHandler) {
	api := h.Group("/api/v1")

	// 配置了API密钥才挂鉴权中间件，健康检查始终放行
	if len(cfg.APIKeys) > 0 {
		allowed := make(map[string]struct{}, len(cfg.APIKeys))
		for _, key := range cfg.APIKeys {
			allowed[key] = struct{}{}
		}
		api.Use(keyauth.New(
			keyauth.WithKeyLookUp("header:X-Api-Key", ""),
			keyauth.WithFilter(func(c context.Context, ctx *app.RequestContext) bool {
				return string(ctx.Path()) == "/api/v1/health"
			}),
			keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
				_, ok := allowed[key]
				return ok, nil
			}),
		))
	}

	api.POST("/match", matchHandler.HandleCalculateMatch)
	api.POST("/evidence", matchHandler.HandleSelectEvidence)

	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}
