package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-emtrack/scenario"
	"go-emtrack/session"
	"go-emtrack/types"
)

func GetScenarioHandler(c *gin.Context, sess *session.Session) {
	c.JSON(http.StatusOK, gin.H{
		"scenario": sess.Snapshot(),
		"statuses": sess.Statuses(),
	})
}

func GetSummaryHandler(c *gin.Context, sess *session.Session) {
	c.JSON(http.StatusOK, sess.Summary())
}

func GetIncidentTypesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"incidentTypes": scenario.IncidentTypes})
}

func SetMetadataHandler(c *gin.Context, sess *session.Session) {
	var m session.Metadata
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess.SetMetadata(m)
	c.JSON(http.StatusOK, gin.H{"scenario": sess.Snapshot()})
}

func SetRosterHandler(c *gin.Context, sess *session.Session) {
	var body struct {
		Roster []types.RosterEntry `json:"roster"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess.SetRoster(body.Roster)
	c.JSON(http.StatusOK, gin.H{"roster": sess.Snapshot().Roster})
}

func SaveScenarioHandler(c *gin.Context, sess *session.Session, log *zap.Logger) {
	saved, err := sess.SaveToList(c.Request.Context())
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved})
}

func FinishScenarioHandler(c *gin.Context, sess *session.Session, log *zap.Logger) {
	res, err := sess.Finish(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, log, err)
		return
	}
	resp := gin.H{"saved": res.Saved, "archiveId": res.ArchiveID}
	if res.ArchiveErr != nil {
		resp["archiveError"] = res.ArchiveErr.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func NewScenarioHandler(c *gin.Context, sess *session.Session, log *zap.Logger) {
	var body struct {
		SaveCurrent bool `json:"saveCurrent"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := sess.NewScenario(c.Request.Context(), body.SaveCurrent); err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenario": sess.Snapshot()})
}

func ListSavedHandler(c *gin.Context, sess *session.Session, log *zap.Logger) {
	list, err := sess.ListSaved(c.Request.Context(), identity(c))
	if err != nil {
		respondError(c, log, err)
		return
	}
	if list == nil {
		list = []types.SavedScenario{}
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": list})
}

type loadSavedBody struct {
	ID     string `json:"id" binding:"required"`
	Origin string `json:"origin"`
}

// LoadSavedHandler loads a named local scenario, or a remote one when
// origin is "remote". The id travels in the body since local ids are
// scenario names and dated names contain slashes.
func LoadSavedHandler(c *gin.Context, sess *session.Session, log *zap.Logger) {
	var body loadSavedBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	var (
		drifts []*types.DriftError
		err    error
	)
	if body.Origin == types.OriginRemote {
		drifts, err = sess.LoadRemote(c.Request.Context(), identity(c), body.ID)
	} else {
		drifts, err = sess.LoadNamed(c.Request.Context(), body.ID)
	}
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"scenario": sess.Snapshot(),
		"drift":    warningStrings(drifts),
	})
}
