package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"employee-data-maintenance/internal/domain"
)

var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// TokenService はPAU形式のJWTの生成・デコード・検証を提供する。
type TokenService struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewTokenService は新しいTokenServiceを生成する。
func NewTokenService(secret string, expiration time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}
}

// CleanToken は前後の空白と "Bearer " プレフィックスを取り除く。
func CleanToken(raw string) string {
	token := strings.TrimSpace(raw)
	if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

// Decode は署名を検証せずにヘッダーとクレームを取り出す。
func (s *TokenService) Decode(raw string) (*domain.TokenInfo, error) {
	parser := jwt.NewParser(jwt.WithJSONNumber())
	claims := jwt.MapClaims{}
	token, _, err := parser.ParseUnverified(CleanToken(raw), claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	return s.tokenInfo(token, claims), nil
}

// Verify は署名と有効期限を検証する。
// 期限切れの場合もデコード結果を返し、エラーはErrTokenExpiredとなる。
func (s *TokenService) Verify(raw string) (*domain.TokenInfo, error) {
	cleaned := CleanToken(raw)
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(cleaned, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods(hmacMethods),
		jwt.WithTimeFunc(s.now),
		jwt.WithJSONNumber(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			info, decodeErr := s.Decode(cleaned)
			if decodeErr != nil {
				return nil, decodeErr
			}
			return info, fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	info := s.tokenInfo(token, claims)
	info.Verified = true
	return info, nil
}

// Generate は設定された有効期間でHS512署名のトークンを生成する。
func (s *TokenService) Generate(identity domain.PAUIdentity) (string, error) {
	return s.GenerateWithTTL(identity, s.expiration)
}

// GenerateWithTTL は有効期間を指定してHS512署名のトークンを生成する。
func (s *TokenService) GenerateWithTTL(identity domain.PAUIdentity, ttl time.Duration) (string, error) {
	if identity.Cedula == "" {
		return "", fmt.Errorf("%w: cedula is required", domain.ErrInvalidToken)
	}
	if ttl <= 0 {
		ttl = s.expiration
	}
	now := s.now()
	claims := jwt.MapClaims{
		"sub":             identity.Subject(),
		"idtipodocumento": identity.TipoDocumento,
		"identificacion":  identity.Cedula,
		"nombres":         identity.Nombres,
		"apellidos":       identity.Apellidos,
		"idroles":         identity.Roles,
		"idpantallas":     identity.Pantallas,
		"experience":      identity.Experience,
		"iat":             now.Unix(),
		"exp":             now.Add(ttl).Unix(),
		"jti":             uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) tokenInfo(token *jwt.Token, claims jwt.MapClaims) *domain.TokenInfo {
	info := &domain.TokenInfo{
		Header: token.Header,
		Claims: claims,
	}
	if alg, ok := token.Header["alg"].(string); ok {
		info.Algorithm = alg
	}

	info.Subject = claimString(claims, "sub")
	cedula := claimString(claims, "identificacion")
	if cedula == "" {
		cedula = strings.TrimPrefix(info.Subject, domain.SubjectPrefix)
	}
	info.Identity = domain.PAUIdentity{
		Cedula:        cedula,
		TipoDocumento: claimString(claims, "idtipodocumento"),
		Nombres:       claimString(claims, "nombres"),
		Apellidos:     claimString(claims, "apellidos"),
		Roles:         claimString(claims, "idroles"),
		Pantallas:     claimString(claims, "idpantallas"),
		Experience:    claimString(claims, "experience"),
	}

	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		t := iat.Time
		info.IssuedAt = &t
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		info.ExpiresAt = &t
		info.Expired = !s.now().Before(t)
	}
	return info
}

// claimString は文字列・数値のクレームを文字列として返す。
func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
