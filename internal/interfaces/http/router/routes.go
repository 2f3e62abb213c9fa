package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes 注册兼容浏览器客户端的 /api 路由
func RegisterAPIRoutes(api *gin.RouterGroup, h Handlers, limited gin.HandlerFunc) {
	if h.Generate != nil {
		api.POST("/generate", limited, h.Generate.Generate)
	}
	if h.Models != nil {
		api.GET("/models", h.Models.ListModels)
	}
	if h.Export != nil {
		api.POST("/export", h.Export.ExportDocuments)
	}
}

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, h Handlers, limited gin.HandlerFunc) {
	// 模型目录
	if h.Models != nil {
		models := v1.Group("/models")
		{
			models.GET("", h.Models.ListModelsV1)
			models.POST("/refresh", h.Models.RefreshModels)
			models.GET("/*id", h.Models.GetModel)
		}
	}

	// 工作流
	if h.Workflows != nil {
		workflows := v1.Group("/workflows")
		{
			workflows.POST("", h.Workflows.CreateWorkflow)
			workflows.GET("/:id", h.Workflows.GetWorkflow)
			workflows.DELETE("/:id", h.Workflows.DeleteWorkflow)

			workflows.POST("/:id/generate", limited, h.Workflows.Generate)
			workflows.POST("/:id/advance", h.Workflows.Advance)
			workflows.POST("/:id/reset", h.Workflows.Reset)

			workflows.POST("/:id/phases/:phase/approve", h.Workflows.Approve)
			workflows.POST("/:id/phases/:phase/reject", h.Workflows.Reject)
			workflows.POST("/:id/phases/:phase/refine", h.Workflows.Refine)
			workflows.PUT("/:id/phases/:phase/content", h.Workflows.UpdateContent)

			if h.Export != nil {
				workflows.GET("/:id/export", h.Export.ExportWorkflow)
				workflows.GET("/:id/diagrams", h.Export.ListDiagrams)
				workflows.GET("/:id/diagrams/:index", h.Export.GetDiagram)
			}
		}
	}

	// 上下文文件
	if h.ContextFiles != nil {
		files := v1.Group("/context-files")
		{
			files.POST("", h.ContextFiles.Upload)
			files.POST("/validate", h.ContextFiles.Validate)
		}
	}

	// 已归档规格
	if h.Specs != nil {
		specs := v1.Group("/specs")
		{
			specs.GET("", h.Specs.ListSpecs)
			specs.GET("/:workflowId", h.Specs.GetSpec)
		}
	}
}
