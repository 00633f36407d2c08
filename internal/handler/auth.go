package handler

import (
	"net/http"

	"github.com/UdarEdge/HoyPecamos-sub002/internal/apierror"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/dto"
	"github.com/UdarEdge/HoyPecamos-sub002/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct{ svc service.AuthService }

func NewAuthHandler(svc service.AuthService) *AuthHandler { return &AuthHandler{svc: svc} }

// Login godoc
// @Summary Login de operador
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "Credenciales"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apierror.WithCode("invalid_credentials", err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh godoc
// @Summary Renueva el par de tokens con un refresh token
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.RefreshRequest true "Refresh token"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, apierror.WithCode("invalid_refresh", err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ── Operadores Handler ───────────────────────────────────────────────────────

type OperadoresHandler struct{ svc service.AuthService }

func NewOperadoresHandler(svc service.AuthService) *OperadoresHandler {
	return &OperadoresHandler{svc: svc}
}

// Crear godoc
// @Summary Alta de operador (solo administrador)
// @Tags operadores
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CrearOperadorRequest true "Operador"
// @Success 201 {object} dto.OperadorResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/operadores [post]
func (h *OperadoresHandler) Crear(c *gin.Context) {
	var req dto.CrearOperadorRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CrearOperador(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusCreated, resp)
}
