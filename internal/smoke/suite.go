// Package smoke は稼働中のバックエンドとフロントエンドに対するHTTPスモークテストを提供する。
package smoke

import (
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"employee-data-maintenance/internal/domain"
)

//go:embed suites.yaml
var builtinSuites []byte

// Target はリクエスト先のベースURLの種類。
type Target string

const (
	TargetAPI      Target = "api"
	TargetFrontend Target = "frontend"
)

// AuthMode はAuthorizationヘッダーの付け方。
type AuthMode string

const (
	AuthNone    AuthMode = "none"
	AuthBearer  AuthMode = "bearer"
	AuthInvalid AuthMode = "invalid"
)

// Case は1回のHTTP呼び出しと期待値。
type Case struct {
	Name         string            `yaml:"name"`
	Target       Target            `yaml:"target"`
	Method       string            `yaml:"method"`
	Path         string            `yaml:"path"`
	Query        map[string]string `yaml:"query"`
	Body         any               `yaml:"body"`
	Auth         AuthMode          `yaml:"auth"`
	ExpectStatus []int             `yaml:"expect_status"`
	ExpectJSON   map[string]any    `yaml:"expect_json"`
	// Capture は 変数名 → レスポンスのトップレベルフィールド名。
	Capture map[string]string `yaml:"capture"`
}

// Suite は順番に実行するケースの集合。
type Suite struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Cases       []Case `yaml:"cases"`
}

type suiteFile struct {
	Suites []*Suite `yaml:"suites"`
}

// normalize は省略された項目に既定値を入れ、定義を検証する。
func (s *Suite) normalize() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("suite name is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("suite %s has no cases", s.Name)
	}
	for i := range s.Cases {
		c := &s.Cases[i]
		if c.Name == "" {
			c.Name = fmt.Sprintf("%s#%d", s.Name, i+1)
		}
		if c.Target == "" {
			c.Target = TargetAPI
		}
		if c.Target != TargetAPI && c.Target != TargetFrontend {
			return fmt.Errorf("suite %s: case %s: unknown target %q", s.Name, c.Name, c.Target)
		}
		c.Method = strings.ToUpper(c.Method)
		if c.Method == "" {
			c.Method = http.MethodGet
		}
		if c.Auth == "" {
			c.Auth = AuthNone
		}
		if c.Auth != AuthNone && c.Auth != AuthBearer && c.Auth != AuthInvalid {
			return fmt.Errorf("suite %s: case %s: unknown auth %q", s.Name, c.Name, c.Auth)
		}
		if !strings.HasPrefix(c.Path, "/") {
			return fmt.Errorf("suite %s: case %s: path must start with /", s.Name, c.Name)
		}
		if len(c.ExpectStatus) == 0 {
			c.ExpectStatus = []int{http.StatusOK}
		}
	}
	return nil
}

// ParseSuites はYAMLからスイートを読み込む。
func ParseSuites(data []byte) ([]*Suite, error) {
	var f suiteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing suites: %w", err)
	}
	for _, s := range f.Suites {
		if err := s.normalize(); err != nil {
			return nil, err
		}
	}
	return f.Suites, nil
}

// Registry は名前で引けるスイートの集合。
type Registry struct {
	suites map[string]*Suite
}

// NewRegistry は組み込みスイートを読み込んだRegistryを生成する。
func NewRegistry() (*Registry, error) {
	suites, err := ParseSuites(builtinSuites)
	if err != nil {
		return nil, fmt.Errorf("loading builtin suites: %w", err)
	}
	r := &Registry{suites: make(map[string]*Suite)}
	r.Merge(suites)
	return r, nil
}

// LoadFile はファイルのスイートを読み込み、同名の組み込みスイートを置き換える。
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading suite file: %w", err)
	}
	suites, err := ParseSuites(data)
	if err != nil {
		return err
	}
	r.Merge(suites)
	return nil
}

// Merge はスイートを追加する。
func (r *Registry) Merge(suites []*Suite) {
	for _, s := range suites {
		r.suites[strings.ToLower(s.Name)] = s
	}
}

// Get は名前でスイートを返す。
func (r *Registry) Get(name string) (*Suite, error) {
	s, ok := r.suites[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSuiteNotFound, name)
	}
	return s, nil
}

// Suites は名前順のスイート一覧を返す。
func (r *Registry) Suites() []*Suite {
	suites := make([]*Suite, 0, len(r.suites))
	for _, s := range r.suites {
		suites = append(suites, s)
	}
	sort.Slice(suites, func(i, j int) bool { return suites[i].Name < suites[j].Name })
	return suites
}
