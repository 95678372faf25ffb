package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/crosswms/loadorder/internal/interfaces/http/router"
)

// PrintRoutes creates the route group for the print dialog endpoints
func PrintRoutes(handler *PrintHandler, middlewares ...gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("print", "/print")
	group.Use(middlewares...)

	dialogs := group.Group("print-dialogs", "/dialogs")
	dialogs.POST("", handler.OpenDialog)
	dialogs.GET("/:id", handler.GetDialog)
	dialogs.PUT("/:id/document-type", handler.SelectDocumentType)
	dialogs.PUT("/:id/records", handler.UpdateRecords)
	dialogs.GET("/:id/preview", handler.Preview)
	dialogs.POST("/:id/print", handler.Print)
	dialogs.GET("/:id/export", handler.Export)
	dialogs.DELETE("/:id", handler.CloseDialog)

	group.GET("/document-types", handler.GetDocumentTypes)
	group.GET("/paper-sizes", handler.GetPaperSizes)

	return group
}
