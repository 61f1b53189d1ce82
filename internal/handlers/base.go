package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/middleware"
	"gulfquotes/internal/models"
	"gulfquotes/internal/services"
	"gulfquotes/internal/utils"
)

// respond writes data inside the envelope.
func respond(c *gin.Context, status int, data any) {
	c.JSON(status, middleware.Envelope{Data: data})
}

// fail maps err to the envelope. Anything that is not an *apperr.Error is
// logged and reported as a generic internal error.
func fail(c *gin.Context, log logrus.FieldLogger, err error) {
	if e, ok := apperr.As(err); ok {
		middleware.AbortWithError(c, e)
		return
	}
	log.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("unhandled error")
	middleware.AbortWithError(c, apperr.Internal("Internal server error"))
}

// bind decodes the JSON body into dst. Validation failures become
// VALIDATION_ERROR with one message per field.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[jsonName(fe)] = fieldMessage(fe)
			}
			middleware.AbortWithError(c, apperr.Validation("Invalid input data", details))
			return false
		}
		middleware.AbortWithError(c, apperr.BadRequest("Invalid request body"))
		return false
	}
	return true
}

func jsonName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return "body"
	}
	// CategoryID -> categoryID 足够前端定位字段
	return strings.ToLower(name[:1]) + name[1:]
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	case "min":
		return "Must be at least " + fe.Param() + " characters"
	case "email":
		return "Must be a valid email address"
	case "url":
		return "Must be a valid URL"
	}
	return "Invalid value"
}

// page reads page/limit from the query string.
func page(c *gin.Context, def int) services.Page {
	return services.NewPage(
		utils.IntOrDefault(c.Query("page"), 1),
		utils.IntOrDefault(c.Query("limit"), def),
		def,
		services.MaxPageSize,
	)
}

// viewerID is the current user's id, or "" for anonymous requests.
func viewerID(c *gin.Context) string {
	if u := middleware.CurrentUser(c); u != nil {
		return u.ID
	}
	return ""
}

// me is the logged-in user; only valid behind AuthRequired.
func me(c *gin.Context) *models.User {
	return c.MustGet(middleware.CheckUserKey).(*models.User)
}

// Healthz is the liveness probe.
func Healthz(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"status": "ok"})
}
