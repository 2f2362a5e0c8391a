// Package handler はHTTPハンドラを提供する。
package handler

import (
	"errors"
	"net/http"
	"time"

	"employee-data-maintenance/internal/domain"
	"employee-data-maintenance/internal/middleware"
	"employee-data-maintenance/internal/usecase"
	"employee-data-maintenance/pkg/httputil"
)

// TestIdentity はテストトークンに埋め込む架空の利用者。
var TestIdentity = domain.PAUIdentity{
	Cedula:        "1000000001",
	TipoDocumento: "1",
	Nombres:       "USUARIO",
	Apellidos:     "PRUEBA",
	Roles:         "5",
	Pantallas:     "16,67,42,12,13,14,15",
	Experience:    "0",
}

// AuthHandler は開発用の認証エンドポイントを提供する。
type AuthHandler struct {
	tokens   *usecase.TokenService
	identity domain.PAUIdentity
	now      func() time.Time
}

// NewAuthHandler は新しいAuthHandlerを生成する。
func NewAuthHandler(tokens *usecase.TokenService, identity domain.PAUIdentity) *AuthHandler {
	return &AuthHandler{
		tokens:   tokens,
		identity: identity,
		now:      time.Now,
	}
}

// TokenInfoResponse はトークン情報のレスポンス形式。
type TokenInfoResponse struct {
	Subject       string `json:"subject"`
	Cedula        string `json:"identificacion"`
	TipoDocumento string `json:"tipoDocumento,omitempty"`
	Nombres       string `json:"nombres,omitempty"`
	Apellidos     string `json:"apellidos,omitempty"`
	Roles         string `json:"roles,omitempty"`
	Pantallas     string `json:"pantallas,omitempty"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
}

// ValidateResponse は /api/auth/validate のレスポンス形式。
type ValidateResponse struct {
	Valid     bool               `json:"valid"`
	Expired   bool               `json:"expired,omitempty"`
	Error     string             `json:"error,omitempty"`
	TokenInfo *TokenInfoResponse `json:"tokenInfo,omitempty"`
}

// TokenResponse は発行したトークンのレスポンス形式。
type TokenResponse struct {
	Token     string `json:"token"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// RegenerateResponse は /api/auth/regenerate-token のレスポンス形式。
type RegenerateResponse struct {
	Valid            bool               `json:"valid"`
	NewToken         string             `json:"newToken"`
	TokenRegenerated bool               `json:"tokenRegenerated"`
	TokenInfo        *TokenInfoResponse `json:"tokenInfo"`
	Message          string             `json:"message"`
	Timestamp        int64              `json:"timestamp"`
}

// Health はバックエンドのactuator相当の応答を返す。
func (h *AuthHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "UP"})
}

// AuthHealth は認証サービスの死活を返す。
func (h *AuthHandler) AuthHealth(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"service":   "Auth Service",
		"timestamp": h.now().UnixMilli(),
	})
}

// GenerateTestToken はテスト用の利用者でトークンを発行する。
func (h *AuthHandler) GenerateTestToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokens.Generate(h.identity)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "GENERATE_TEST_TOKEN", h.identity.Subject(), "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Error generando token")
		return
	}

	middleware.WriteAuditLog(r.Context(), "GENERATE_TEST_TOKEN", h.identity.Subject(), "SUCCESS")
	httputil.JSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		Message:   "Token generado exitosamente",
		Timestamp: h.now().UnixMilli(),
	})
}

// Validate はAuthorizationヘッダーのトークンを検証する。
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	if usecase.CleanToken(header) == "" {
		middleware.WriteAuditLog(r.Context(), "VALIDATE_TOKEN", "", "FAILED")
		httputil.JSON(w, http.StatusUnauthorized, ValidateResponse{Error: "Token no proporcionado"})
		return
	}

	info, err := h.tokens.Verify(header)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			middleware.WriteAuditLog(r.Context(), "VALIDATE_TOKEN", info.Subject, "EXPIRED")
			httputil.JSON(w, http.StatusUnauthorized, ValidateResponse{
				Expired:   true,
				Error:     "Token expirado",
				TokenInfo: toTokenInfoResponse(info),
			})
			return
		}
		middleware.WriteAuditLog(r.Context(), "VALIDATE_TOKEN", "", "FAILED")
		httputil.JSON(w, http.StatusUnauthorized, ValidateResponse{Error: "Token completamente inválido"})
		return
	}

	middleware.WriteAuditLog(r.Context(), "VALIDATE_TOKEN", info.Subject, "SUCCESS")
	httputil.JSON(w, http.StatusOK, ValidateResponse{
		Valid:     true,
		TokenInfo: toTokenInfoResponse(info),
	})
}

// RegenerateToken は署名が正しいトークン（期限切れを含む）から同じ利用者のトークンを再発行する。
func (h *AuthHandler) RegenerateToken(w http.ResponseWriter, r *http.Request) {
	info, err := h.tokens.Verify(r.Header.Get("Authorization"))
	if err != nil && !errors.Is(err, domain.ErrTokenExpired) {
		middleware.WriteAuditLog(r.Context(), "REGENERATE_TOKEN", "", "FAILED")
		httputil.JSON(w, http.StatusUnauthorized, ValidateResponse{Error: "No se pudo extraer información del token expirado"})
		return
	}
	if info.Identity.Cedula == "" {
		middleware.WriteAuditLog(r.Context(), "REGENERATE_TOKEN", info.Subject, "FAILED")
		httputil.JSON(w, http.StatusUnauthorized, ValidateResponse{Error: "No se pudo extraer la cédula del token"})
		return
	}

	token, err := h.tokens.Generate(info.Identity)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "REGENERATE_TOKEN", info.Subject, "FAILED")
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Error regenerando token")
		return
	}

	middleware.WriteAuditLog(r.Context(), "REGENERATE_TOKEN", info.Subject, "SUCCESS")
	httputil.JSON(w, http.StatusOK, RegenerateResponse{
		Valid:            true,
		NewToken:         token,
		TokenRegenerated: true,
		TokenInfo:        toTokenInfoResponse(info),
		Message:          "Token regenerado exitosamente",
		Timestamp:        h.now().UnixMilli(),
	})
}

func toTokenInfoResponse(info *domain.TokenInfo) *TokenInfoResponse {
	resp := &TokenInfoResponse{
		Subject:       info.Subject,
		Cedula:        info.Identity.Cedula,
		TipoDocumento: info.Identity.TipoDocumento,
		Nombres:       info.Identity.Nombres,
		Apellidos:     info.Identity.Apellidos,
		Roles:         info.Identity.Roles,
		Pantallas:     info.Identity.Pantallas,
	}
	if info.ExpiresAt != nil {
		resp.ExpiresAt = info.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp
}
