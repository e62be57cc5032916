package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richmond-dms/docflow/internal/api/middleware"
	"github.com/richmond-dms/docflow/internal/apperr"
	"github.com/richmond-dms/docflow/internal/db/models"
)

// respond writes the success envelope with payload merged into it.
func respond(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// bindJSON decodes the request body into dst. An empty body leaves dst
// untouched. On failure the error is attached to c and false returned.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &tooLarge):
		_ = c.Error(apperr.PayloadTooLarge("request body too large").Wrap(err))
	case errors.As(err, &syntax), errors.Is(err, io.ErrUnexpectedEOF):
		_ = c.Error(apperr.Validation("malformed JSON body").Wrap(err))
	case errors.As(err, &typeErr):
		_ = c.Error(apperr.Validation("field " + typeErr.Field + " has the wrong type").Wrap(err))
	default:
		_ = c.Error(apperr.Validation("invalid request body").Wrap(err))
	}
	return false
}

func bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		_ = c.Error(apperr.Validation("invalid query parameters").Wrap(err))
		return false
	}
	return true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		_ = c.Error(apperr.Validation("query parameter " + name + " must be an integer"))
		return 0, false
	}
	return n, true
}

func actor(c *gin.Context) *models.User {
	return middleware.Actor(c)
}
