package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/aerobound/internal/auth"
	"github.com/Domenick1991/aerobound/internal/repository"
	"github.com/Domenick1991/aerobound/internal/service/user"
	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service user.UserUseCase
}

func NewUserHandler(service user.UserUseCase) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) Register(router *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	router.POST("/register/", h.register)
	router.POST("/token", h.login)
	router.POST("/forgot-password/", h.forgotPassword)
	router.GET("/verify-reset-token/:token", h.verifyResetToken)
	router.POST("/reset-password/", h.resetPassword)
	router.GET("/me/", requireAuth, h.me)
	router.POST("/change-password/", requireAuth, h.changePassword)
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Token           string `json:"token" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

type changePasswordRequest struct {
	OldPassword     string `json:"old_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

type resultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *UserHandler) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := h.service.Register(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, repository.ErrEmailTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email already registered"})
		return
	case errors.Is(err, user.ErrInvalidPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed, try again later."})
		return
	}

	c.JSON(http.StatusOK, userResponse{ID: u.ID.String(), Email: u.Email})
}

func (h *UserHandler) login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.service.Login(c.Request.Context(), form.Username, form.Password)
	if errors.Is(err, user.ErrInvalidCredentials) {
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Incorrect email or password"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed, try again later."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

// forgotPassword answers the same way whether or not the address is registered.
func (h *UserHandler) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_ = h.service.ForgotPassword(c.Request.Context(), req.Email)

	c.JSON(http.StatusOK, resultResponse{
		Success: true,
		Message: "If your email is registered, you will receive a password reset link shortly.",
	})
}

func (h *UserHandler) verifyResetToken(c *gin.Context) {
	valid, err := h.service.VerifyResetToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not verify the reset token"})
		return
	}
	if !valid {
		c.JSON(http.StatusOK, gin.H{"valid": false, "message": "Token is invalid or has expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "message": "Token is valid"})
}

func (h *UserHandler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.service.ResetPassword(c.Request.Context(), req.Token, req.NewPassword)
	switch {
	case errors.Is(err, user.ErrInvalidResetToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset token"})
		return
	case errors.Is(err, user.ErrInvalidPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Password reset failed, try again later."})
		return
	}

	c.JSON(http.StatusOK, resultResponse{Success: true, Message: "Password has been reset successfully"})
}

func (h *UserHandler) me(c *gin.Context) {
	u, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Could not validate credentials"})
		return
	}
	c.JSON(http.StatusOK, userResponse{ID: u.ID.String(), Email: u.Email})
}

func (h *UserHandler) changePassword(c *gin.Context) {
	u, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Could not validate credentials"})
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.service.ChangePassword(c.Request.Context(), u.ID, req.OldPassword, req.NewPassword)
	switch {
	case errors.Is(err, user.ErrWrongPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Old password is incorrect"})
		return
	case errors.Is(err, user.ErrInvalidPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Password change failed, try again later."})
		return
	}

	c.JSON(http.StatusOK, resultResponse{Success: true, Message: "Password has been changed successfully"})
}
