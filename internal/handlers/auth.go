package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gulfquotes/internal/middleware"
	"gulfquotes/internal/services"
)

type AuthHandler struct {
	users *services.UserService
	log   logrus.FieldLogger
}

func NewAuthHandler(users *services.UserService, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{users: users, log: log}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// login 写入 session
func (h *AuthHandler) login(c *gin.Context, userID string) error {
	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, userID)
	return session.Save()
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if !bind(c, &req) {
		return
	}
	user, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if err := h.login(c, user.ID); err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if err := h.login(c, user.ID); err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, user)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		fail(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"success": true})
}
