// Package router 提供 HTTP 路由配置
package router

import (
	"storybook-ai-api/internal/interfaces/http/handler"

	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	storyHandler *handler.StoryHandler,
	projectHandler *handler.ProjectHandler,
	visualHandler *handler.VisualHandler,
) {
	// 故事生成（无项目上下文的一次性生成）
	stories := v1.Group("/stories")
	{
		stories.POST("", storyHandler.GenerateStory)
		stories.POST("/characters/extract", storyHandler.ExtractCharacters)
	}

	// 项目管理（故事 + 角色 + 插图的完整流水线）
	projects := v1.Group("/projects")
	{
		projects.GET("", projectHandler.ListProjects)
		projects.POST("", projectHandler.CreateProject)
		projects.GET("/:id", projectHandler.GetProject)
		projects.DELETE("/:id", projectHandler.DeleteProject)

		// 项目内重新生成
		projects.POST("/:id/story", projectHandler.RegenerateStory)
		projects.POST("/:id/characters", projectHandler.ExtractCharacters)
		projects.POST("/:id/images", projectHandler.GenerateImages)
	}

	// 单页插图（支持自定义提示词覆盖）
	images := v1.Group("/images")
	{
		images.POST("/stories/:id/pages/:page", projectHandler.GeneratePageImage)
	}

	// 视觉一致性（art bible / 角色参考图 / 会话管理）
	visual := v1.Group("/visual")
	{
		visual.POST("/art-bible/prompt", visualHandler.BuildArtBiblePrompt)
		visual.POST("/art-bible/image", visualHandler.GenerateArtBibleImage)
		visual.POST("/character-reference/prompt", visualHandler.BuildCharacterReferencePrompt)
		visual.POST("/character-reference/image", visualHandler.GenerateCharacterReferenceImage)
		visual.POST("/session/start", visualHandler.StartSession)
		visual.POST("/session/clear", visualHandler.ClearSession)
	}
}
