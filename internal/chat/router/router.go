package router

import (
	"context"

	"messaging_service/internal/chat/app"
	"messaging_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 注册 conversation/message 相关的路由
// @title Messaging Service API
// @version 1.0
// @description API documentation for Messaging Service
// @host localhost:8084
// @BasePath /
func RegisterRoutes(r *fiber.App, chatHandler *app.ChatHandler, chatWebsocket *app.ChatWebsocketHandler) {
	r.Get("/swagger/*", swagger.HandlerDefault)
	r.Get("/", app.ConnectCheck)
	r.Post("/debug", app.DebugLogFlag)

	r.Use(middlewares.JWTMiddleware())

	convRoutes := r.Group("/conversations")
	convRoutes.Post("/", chatHandler.CreateConversation)
	convRoutes.Get("/", chatHandler.ListConversations)
	convRoutes.Get("/:id", chatHandler.GetConversation)
	convRoutes.Patch("/:id/status", chatHandler.UpdateConversationStatus)
	convRoutes.Post("/:id/messages", chatHandler.SendMessage)
	convRoutes.Get("/:id/messages", chatHandler.ListMessages)
	convRoutes.Post("/:id/read", chatHandler.MarkAsRead)
	convRoutes.Get("/:id/unread", chatHandler.UnreadCount)

	r.Patch("/messages/:id", chatHandler.EditMessage)
	r.Delete("/messages/:id", chatHandler.DeleteMessage)
	r.Get("/unread", chatHandler.UnreadCountAll)

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		// 這裡可以建立一個「執行個體」，將 UseCase 等注入
		chatWebsocket.HandleConnection(context.Background(), c)
	}))
}
