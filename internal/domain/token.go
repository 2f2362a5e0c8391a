package domain

import "time"

// SubjectPrefix はPAUトークンのsubに付与されるプレフィックス。
const SubjectPrefix = "CP"

// PAUIdentity はPAUトークンに含まれる利用者情報を表す。
type PAUIdentity struct {
	Cedula        string
	TipoDocumento string
	Nombres       string
	Apellidos     string
	Roles         string
	Pantallas     string
	Experience    string
}

// Subject はsubクレームの値を返す。
func (i PAUIdentity) Subject() string {
	return SubjectPrefix + i.Cedula
}

// TokenInfo はデコード済みJWTの内容を表す。
type TokenInfo struct {
	Algorithm string
	Header    map[string]any
	Claims    map[string]any
	Subject   string
	Identity  PAUIdentity
	IssuedAt  *time.Time
	ExpiresAt *time.Time
	Expired   bool
	// Verified は署名検証を行った場合にtrueとなる。
	Verified bool
}
