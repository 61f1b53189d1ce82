package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"gulfquotes/internal/apperr"
	"gulfquotes/internal/models"
)

const CheckUserKey = "user"
const SessionUserKey = "user_id"

// LoadUser retrieves user from session and sets to context
func LoadUser(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(SessionUserKey).(string)

		if ok && userID != "" {
			var user models.User
			if err := conn.WithContext(c.Request.Context()).First(&user, "id = ?", userID).Error; err == nil {
				c.Set(CheckUserKey, &user)
			} else {
				// 用户已被删除，清掉失效的 session
				session.Delete(SessionUserKey)
				_ = session.Save()
			}
		}
		c.Next()
	}
}

// CurrentUser returns the user LoadUser put on the context, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CheckUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			AbortWithError(c, apperr.Unauthorized("Authentication required"))
			return
		}
		c.Next()
	}
}

// RequireRole lets through only users holding one of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			AbortWithError(c, apperr.Unauthorized("Authentication required"))
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		AbortWithError(c, apperr.Forbidden("Permission denied"))
	}
}
