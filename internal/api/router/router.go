package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/api/handlers/catalog"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/api/handlers/result"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/api/handlers/run"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/api/handlers/upload"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/api/respond"
	"github.com/kamil-lesniak-mmq/mimeeq-ai-image-poc/internal/middleware"
)

// Handlers groups the HTTP handlers served by the API.
type Handlers struct {
	Run     *run.Handler
	Catalog *catalog.Handler
	Upload  *upload.Handler
	Result  *result.Handler
}

func Setup(h Handlers) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())
	r.Use(middleware.ActorMiddleware())

	r.GET("/health", func(c *ginext.Context) {
		respond.OK(c, "ok")
	})

	api := r.Group("/api")

	api.GET("/runs", h.Run.List)                    // runs with results, newest first
	api.POST("/runs", h.Run.Create)                 // creating an empty run
	api.POST("/runs/submit", h.Run.Submit)          // whole batch: create, attach, dispatch
	api.PATCH("/runs/:id", h.Run.Rename)            // renaming run by id
	api.POST("/runs/:id/attachments", h.Run.Attach) // recording a (prompt, image) pair
	api.POST("/runs/:id/dispatch", h.Run.Dispatch)  // running generation items

	api.GET("/prompts", h.Catalog.ListPrompts)
	api.POST("/prompts", h.Catalog.CreatePrompt)
	api.DELETE("/prompts/:id", h.Catalog.DeletePrompt)

	api.GET("/images", h.Catalog.ListImages)
	api.POST("/images", h.Catalog.SaveImage)
	api.DELETE("/images/:id", h.Catalog.DeleteImage)

	api.POST("/upload-image", h.Upload.Upload)

	api.GET("/results/:id/thumbnail", h.Result.Thumbnail) // archived thumbnail

	return r
}
