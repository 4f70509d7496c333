package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-emtrack/session"
	"go-emtrack/types"
)

type catalogLocation struct {
	Name       string                         `json:"name"`
	Categories map[string][]types.SourceEntry `json:"categories"`
	Order      []string                       `json:"order"`
}

// GetCatalogHandler returns the catalog in effect and the active location.
func GetCatalogHandler(c *gin.Context, sess *session.Session) {
	cat, active := sess.Catalog()
	if cat.Empty() {
		c.JSON(http.StatusOK, gin.H{
			"status":         "no catalog loaded",
			"activeLocation": active,
			"locations":      []catalogLocation{},
		})
		return
	}

	locations := make([]catalogLocation, 0, len(cat.Locations))
	for _, l := range cat.Locations {
		loc := catalogLocation{Name: l.Name, Categories: map[string][]types.SourceEntry{}}
		for _, cs := range l.Categories {
			loc.Order = append(loc.Order, cs.Name)
			loc.Categories[cs.Name] = cs.Sources
		}
		locations = append(locations, loc)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"activeLocation": active,
		"locations":      locations,
	})
}

// ImportCatalogHandler accepts a multipart "file" upload, a raw CSV body, or
// JSON {"source": "<path or url>"} to fetch from.
func ImportCatalogHandler(c *gin.Context, sess *session.Session, log *zap.Logger) {
	var (
		res session.ImportResult
		err error
	)
	switch {
	case strings.HasPrefix(c.ContentType(), "multipart/"):
		fh, ferr := c.FormFile("file")
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
			return
		}
		f, ferr := fh.Open()
		if ferr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not open upload"})
			return
		}
		defer f.Close()
		res, err = sess.ImportCatalog(c.Request.Context(), f, fh.Filename)

	case c.ContentType() == "application/json":
		var body struct {
			Source string `json:"source"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil || strings.TrimSpace(body.Source) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expected {\"source\": \"...\"}"})
			return
		}
		res, err = sess.LoadCatalog(c.Request.Context(), strings.TrimSpace(body.Source))

	default:
		res, err = sess.ImportCatalog(c.Request.Context(), io.LimitReader(c.Request.Body, 64<<20), "upload")
	}
	if err != nil {
		respondError(c, log, err)
		return
	}

	resp := gin.H{"result": res}
	if res.Drift != nil {
		resp["drift"] = res.Drift.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func SelectLocationHandler(c *gin.Context, sess *session.Session, log *zap.Logger) {
	var body struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected {\"name\": \"...\"}"})
		return
	}
	if err := sess.SelectLocation(c.Request.Context(), body.Name); err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activeLocation": body.Name, "categories": sess.Categories()})
}

func GetCategoriesHandler(c *gin.Context, sess *session.Session) {
	c.JSON(http.StatusOK, gin.H{"categories": sess.Categories()})
}

func GetSourcesHandler(c *gin.Context, sess *session.Session) {
	c.JSON(http.StatusOK, gin.H{"sources": sess.Sources(c.Query("category"))})
}
