// Package catalog はテーブル再構築プランの読み込みと検索を提供する。
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"employee-data-maintenance/internal/domain"
)

//go:embed plans.yaml
var builtinPlans []byte

type planFile struct {
	Plans []*domain.TablePlan `yaml:"plans"`
}

// Catalog は名前で引ける再構築プランの集合。
type Catalog struct {
	plans map[string]*domain.TablePlan
}

// New は組み込みプランを読み込んだCatalogを生成する。
func New() (*Catalog, error) {
	plans, err := Parse(builtinPlans)
	if err != nil {
		return nil, fmt.Errorf("loading builtin plans: %w", err)
	}
	c := &Catalog{plans: make(map[string]*domain.TablePlan)}
	c.Merge(plans)
	return c, nil
}

// Parse はYAMLからプランを読み込み、検証する。
func Parse(data []byte) ([]*domain.TablePlan, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPlan, err)
	}
	for _, p := range f.Plans {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Plans, nil
}

// LoadFile はファイルからプランを読み込む。
func LoadFile(path string) ([]*domain.TablePlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}
	return Parse(data)
}

// Merge はプランを追加する。同名のプランは上書きされる。
func (c *Catalog) Merge(plans []*domain.TablePlan) {
	for _, p := range plans {
		c.plans[strings.ToLower(p.Name)] = p
	}
}

// Get はプラン名またはテーブル名でプランを検索する。
func (c *Catalog) Get(name string) (*domain.TablePlan, error) {
	if p, ok := c.plans[strings.ToLower(name)]; ok {
		return p, nil
	}
	for _, p := range c.Plans() {
		if strings.EqualFold(p.Table, name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrPlanNotFound, name)
}

// Plans は全プランを名前順に返す。
func (c *Catalog) Plans() []*domain.TablePlan {
	plans := make([]*domain.TablePlan, 0, len(c.plans))
	for _, p := range c.plans {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].Name < plans[j].Name
	})
	return plans
}
