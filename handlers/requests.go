package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-emtrack/fulfillment"
	"go-emtrack/session"
)

func editResponse(res session.EditResult) gin.H {
	return gin.H{
		"record":     res.Record,
		"status":     res.Status,
		"transition": res.Transition,
		"warnings":   warningStrings(res.Warnings),
	}
}

func ListRequestsHandler(c *gin.Context, sess *session.Session) {
	snap := sess.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"requests": snap.Requests,
		"statuses": sess.Statuses(),
	})
}

func AddRequestHandler(c *gin.Context, sess *session.Session) {
	rec := sess.AddRequest()
	c.JSON(http.StatusCreated, gin.H{"record": rec})
}

// EditRequestHandler applies a JSON patch. Numeric fields accept numbers or
// raw text; non-numeric text is coerced and reported as a warning.
func EditRequestHandler(c *gin.Context, sess *session.Session, log *zap.Logger) {
	var patch fulfillment.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := sess.EditRequest(c.Param("id"), patch)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, editResponse(res))
}

func ToggleDoneHandler(c *gin.Context, sess *session.Session, log *zap.Logger) {
	var body struct {
		Done *bool `json:"done"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Done == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected {\"done\": true|false}"})
		return
	}
	res, err := sess.ToggleDone(c.Param("id"), *body.Done)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, editResponse(res))
}

func AddPartialHandler(c *gin.Context, sess *session.Session, log *zap.Logger) {
	var in fulfillment.PartialInput
	// An empty body adds the default single unit.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	res, err := sess.AddPartial(c.Param("id"), in)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, editResponse(res))
}

func partialIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "partial index must be an integer"})
		return 0, false
	}
	return idx, true
}

func UpdatePartialHandler(c *gin.Context, sess *session.Session, log *zap.Logger) {
	idx, ok := partialIndex(c)
	if !ok {
		return
	}
	var in fulfillment.PartialInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := sess.UpdatePartial(c.Param("id"), idx, in)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, editResponse(res))
}

func RemovePartialHandler(c *gin.Context, sess *session.Session, log *zap.Logger) {
	idx, ok := partialIndex(c)
	if !ok {
		return
	}
	res, err := sess.RemovePartial(c.Param("id"), idx)
	if err != nil {
		respondError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, editResponse(res))
}

func DeleteRequestHandler(c *gin.Context, sess *session.Session, log *zap.Logger) {
	if err := sess.DeleteRequest(c.Param("id")); err != nil {
		respondError(c, log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
