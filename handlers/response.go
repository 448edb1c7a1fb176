package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"droppers-api/apperr"
	"droppers-api/logx"
	"droppers-api/middleware"
	"droppers-api/service"
)

// Envelope is the body of every REST response.
type Envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func ok(c *gin.Context, status int, msg string, data any) {
	c.JSON(status, Envelope{Success: true, Message: msg, Data: data})
}

// fail maps err onto the envelope. Internal details never leave the process
// in production.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	body := Envelope{Success: false, Message: apperr.MessageOf(err), Error: kind.String()}

	var ae *apperr.Error
	if errors.As(err, &ae) && len(ae.Fields) > 0 {
		body.Fields = ae.Fields
	}
	if kind == apperr.Internal {
		h.log.Error("request failed",
			logx.String("method", c.Request.Method),
			logx.String("path", c.FullPath()),
			logx.Err(err))
		if h.production {
			body.Message = "Internal server error"
		} else {
			body.Error = err.Error()
		}
	}
	c.AbortWithStatusJSON(kind.HTTPStatus(), body)
}

// bind decodes the JSON body into dst and reports binding failures as a
// validation error.
func (h *Handler) bind(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		h.fail(c, apperr.Wrap(apperr.Validation, "invalid request body", err))
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := jsonName(fe.Field())
		fields[name] = name + " failed " + fe.Tag() + " check"
		if fe.Tag() == "required" {
			fields[name] = name + " is required"
		}
	}
	first := jsonName(verrs[0].Field())
	h.fail(c, apperr.Invalid(fields[first], fields))
	return false
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// caller is always present behind AuthRequired.
func caller(c *gin.Context) service.Caller {
	cl, _ := middleware.CallerFrom(c)
	return cl
}

func listData[T any](key string, items []T) gin.H {
	return gin.H{key: items, "count": len(items)}
}
