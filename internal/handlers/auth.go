package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/mmutisya/shuledesk/internal/auth"
	"github.com/mmutisya/shuledesk/internal/services"
	"github.com/mmutisya/shuledesk/pkg/response"
)

type AuthHandler struct {
	users *services.UserService
	jwt   *iauth.JWTService
}

func NewAuthHandler(db *gorm.DB, jwt *iauth.JWTService) (*AuthHandler, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	users, err := services.NewUserService(db, audit)
	if err != nil {
		return nil, err
	}
	return &AuthHandler{users: users, jwt: jwt}, nil
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2,max=128"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.users.Create(requestContext(c), services.CreateUserInput{
		Email:    body.Email,
		Name:     body.Name,
		Password: body.Password,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), body.Email, body.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID: user.ID,
		Email:  user.Email,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.GetByID(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	memberships, err := h.users.Memberships(requestContext(c), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":        user,
		"memberships": memberships,
	})
}
