package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"go-emtrack/handlers"
	"go-emtrack/session"
)

type Deps struct {
	Session   *session.Session
	Log       *zap.Logger
	Gatherer  prometheus.Gatherer
	ClientURL string
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.IdentityMiddleware())

	sess, log := d.Session, d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Hello, welcome to Go EmTrack!",
		})
	})

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// api routes
	api := r.Group("/api/emtrack")
	{
		api.GET("/identity", handlers.GetIdentityHandler)
		api.GET("/incident-types", handlers.GetIncidentTypesHandler)

		api.GET("/catalog", func(c *gin.Context) { handlers.GetCatalogHandler(c, sess) })
		api.POST("/catalog", func(c *gin.Context) { handlers.ImportCatalogHandler(c, sess, log) })
		api.PUT("/catalog/location", func(c *gin.Context) { handlers.SelectLocationHandler(c, sess, log) })
		api.GET("/catalog/categories", func(c *gin.Context) { handlers.GetCategoriesHandler(c, sess) })
		api.GET("/catalog/sources", func(c *gin.Context) { handlers.GetSourcesHandler(c, sess) })

		api.GET("/requests", func(c *gin.Context) { handlers.ListRequestsHandler(c, sess) })
		api.POST("/requests", func(c *gin.Context) { handlers.AddRequestHandler(c, sess) })
		api.PATCH("/requests/:id", func(c *gin.Context) { handlers.EditRequestHandler(c, sess, log) })
		api.DELETE("/requests/:id", func(c *gin.Context) { handlers.DeleteRequestHandler(c, sess, log) })
		api.PUT("/requests/:id/done", func(c *gin.Context) { handlers.ToggleDoneHandler(c, sess, log) })
		api.POST("/requests/:id/partials", func(c *gin.Context) { handlers.AddPartialHandler(c, sess, log) })
		api.PATCH("/requests/:id/partials/:idx", func(c *gin.Context) { handlers.UpdatePartialHandler(c, sess, log) })
		api.DELETE("/requests/:id/partials/:idx", func(c *gin.Context) { handlers.RemovePartialHandler(c, sess, log) })

		api.GET("/scenario", func(c *gin.Context) { handlers.GetScenarioHandler(c, sess) })
		api.PATCH("/scenario", func(c *gin.Context) { handlers.SetMetadataHandler(c, sess) })
		api.PUT("/scenario/roster", func(c *gin.Context) { handlers.SetRosterHandler(c, sess) })
		api.GET("/scenario/summary", func(c *gin.Context) { handlers.GetSummaryHandler(c, sess) })
		api.POST("/scenario/new", func(c *gin.Context) { handlers.NewScenarioHandler(c, sess, log) })
		api.POST("/scenario/save", func(c *gin.Context) { handlers.SaveScenarioHandler(c, sess, log) })
		api.POST("/scenario/finish", func(c *gin.Context) { handlers.FinishScenarioHandler(c, sess, log) })
		api.GET("/scenario/export", func(c *gin.Context) { handlers.ExportHandler(c, sess) })
		api.POST("/scenario/export/hook", func(c *gin.Context) { handlers.SendExportHook(c, sess, d.ClientURL, log) })

		api.GET("/scenarios", func(c *gin.Context) { handlers.ListSavedHandler(c, sess, log) })
		api.POST("/scenarios/load", func(c *gin.Context) { handlers.LoadSavedHandler(c, sess, log) })
	}

	return r
}
