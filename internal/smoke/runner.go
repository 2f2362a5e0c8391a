package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// VarToken はBearer認証に使うトークンの変数名。
	VarToken = "token"
	// VarUserID は対象ユーザーIDの変数名。
	VarUserID = "idUsuario"

	invalidToken   = "invalid.token.value"
	maxBodyBytes   = 1 << 20
	messagePreview = 200
)

var varPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Doer はHTTPリクエストを送信するインターフェース。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CaseResult は1ケースの実行結果。
type CaseResult struct {
	Name     string        `json:"name"`
	Method   string        `json:"method"`
	URL      string        `json:"url"`
	Status   int           `json:"status"`
	Duration time.Duration `json:"duration"`
	Passed   bool          `json:"passed"`
	Message  string        `json:"message,omitempty"`
}

// Report はスイート1回分の実行結果。
type Report struct {
	RunID     uuid.UUID     `json:"run_id"`
	Suite     string        `json:"suite"`
	Results   []CaseResult  `json:"results"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// OK は全ケースが成功した場合にtrueを返す。
func (r *Report) OK() bool {
	return r.Failed == 0
}

// Runner はスイートのケースを順番に実行する。
type Runner struct {
	client      Doer
	apiURL      string
	frontendURL string
	vars        map[string]string
}

// NewRunner は新しいRunnerを生成する。varsはスイート間で共有され、captureで更新される。
func NewRunner(client Doer, apiURL, frontendURL string, vars map[string]string) *Runner {
	if vars == nil {
		vars = make(map[string]string)
	}
	return &Runner{
		client:      client,
		apiURL:      strings.TrimRight(apiURL, "/"),
		frontendURL: strings.TrimRight(frontendURL, "/"),
		vars:        vars,
	}
}

// Vars は現在の変数を返す。
func (r *Runner) Vars() map[string]string {
	return r.vars
}

// Run はスイートを実行する。接続エラーはそのケースの失敗として扱い、次のケースへ進む。
func (r *Runner) Run(ctx context.Context, suite *Suite) *Report {
	report := &Report{
		RunID:     uuid.New(),
		Suite:     suite.Name,
		StartedAt: time.Now(),
	}

	for _, c := range suite.Cases {
		if ctx.Err() != nil {
			report.Results = append(report.Results, CaseResult{
				Name: c.Name, Method: c.Method, Message: ctx.Err().Error(),
			})
			report.Failed++
			continue
		}

		res := r.runCase(ctx, c)
		if res.Passed {
			report.Passed++
		} else {
			report.Failed++
			slog.WarnContext(ctx, "smoke case failed",
				"run_id", report.RunID.String(),
				"suite", suite.Name,
				"case", c.Name,
				"status", res.Status,
				"message", res.Message,
			)
		}
		report.Results = append(report.Results, res)
	}

	report.Duration = time.Since(report.StartedAt)
	return report
}

func (r *Runner) runCase(ctx context.Context, c Case) CaseResult {
	res := CaseResult{Name: c.Name, Method: c.Method}

	target, err := r.buildURL(c)
	if err != nil {
		res.Message = err.Error()
		return res
	}
	res.URL = target

	req, err := r.buildRequest(ctx, c, target)
	if err != nil {
		res.Message = err.Error()
		return res
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Message = fmt.Sprintf("request failed: %v", err)
		return res
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		res.Message = fmt.Sprintf("reading body: %v", err)
		return res
	}

	if !slices.Contains(c.ExpectStatus, resp.StatusCode) {
		res.Message = fmt.Sprintf("status %d, want %v: %s", resp.StatusCode, c.ExpectStatus, preview(body))
		return res
	}

	if len(c.ExpectJSON) == 0 && len(c.Capture) == 0 {
		res.Passed = true
		return res
	}

	fields, err := decodeObject(body)
	if err != nil {
		res.Message = fmt.Sprintf("response is not a JSON object: %s", preview(body))
		return res
	}
	if msg := matchFields(c.ExpectJSON, fields); msg != "" {
		res.Message = msg
		return res
	}
	for name, field := range c.Capture {
		v, ok := fields[field]
		if !ok || v == nil {
			res.Message = fmt.Sprintf("capture %s: field %q missing", name, field)
			return res
		}
		r.vars[name] = captureString(v)
	}
	res.Passed = true
	return res
}

func (r *Runner) buildURL(c Case) (string, error) {
	base := r.apiURL
	if c.Target == TargetFrontend {
		base = r.frontendURL
	}

	path, err := r.expand(c.Path, url.PathEscape)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(base + path)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if len(c.Query) > 0 {
		q := u.Query()
		for k, v := range c.Query {
			expanded, err := r.expand(v, nil)
			if err != nil {
				return "", err
			}
			q.Set(k, expanded)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (r *Runner) buildRequest(ctx context.Context, c Case, target string) (*http.Request, error) {
	var body io.Reader
	if c.Body != nil {
		data, err := json.Marshal(c.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, c.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	switch c.Auth {
	case AuthBearer:
		token := r.vars[VarToken]
		if token == "" {
			return nil, fmt.Errorf("variable %q is not set (use --token or a capture)", VarToken)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case AuthInvalid:
		req.Header.Set("Authorization", "Bearer "+invalidToken)
	}
	return req, nil
}

// expand は {{name}} を変数の値に置き換える。未定義の変数はエラーとなる。
func (r *Runner) expand(s string, escape func(string) string) (string, error) {
	var missing []string
	out := varPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := varPattern.FindStringSubmatch(m)[1]
		v, ok := r.vars[name]
		if !ok || v == "" {
			missing = append(missing, name)
			return m
		}
		if escape != nil {
			return escape(v)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("undefined variable: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, fmt.Errorf("null body")
	}
	return fields, nil
}

// matchFields はトップレベルの各フィールドをJSON表現で比較する。数値どうしは値で比較する。
func matchFields(expect, got map[string]any) string {
	for key, want := range expect {
		v, ok := got[key]
		if !ok {
			return fmt.Sprintf("field %q missing", key)
		}
		if wantNum, ok := numberValue(want); ok {
			if gotNum, ok := numberValue(v); ok && wantNum == gotNum {
				continue
			}
		}
		wantJSON, err := json.Marshal(want)
		if err != nil {
			return fmt.Sprintf("field %q: %v", key, err)
		}
		gotJSON, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("field %q: %v", key, err)
		}
		if !bytes.Equal(wantJSON, gotJSON) {
			return fmt.Sprintf("field %q = %s, want %s", key, gotJSON, wantJSON)
		}
	}
	return ""
}

func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func captureString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		data, _ := json.Marshal(t)
		return string(data)
	}
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > messagePreview {
		return s[:messagePreview] + "..."
	}
	return s
}
