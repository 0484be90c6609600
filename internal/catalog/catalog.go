// Package catalog загружает встроенный каталог бронируемых позиций и вознаграждений.
package catalog

import (
	"embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kuriftu/rewards-system/internal/model"
	"github.com/kuriftu/rewards-system/internal/pricing"
)

//go:embed data/*.yaml
var dataFS embed.FS

// ErrItemNotFound возвращается при запросе отсутствующей позиции каталога.
var (
	ErrItemNotFound = errors.New("catalog item not found")
	// ErrRewardNotFound возвращается при запросе отсутствующего вознаграждения.
	ErrRewardNotFound = errors.New("reward not found")
)

// Catalog хранит неизменяемый набор позиций и вознаграждений.
// Заполняется один раз при старте сервиса.
type Catalog struct {
	items    []model.CatalogItem
	byID     map[string]model.CatalogItem
	rewards  []model.Reward
	rewardID map[string]model.Reward
}

type itemsFile struct {
	Items []model.CatalogItem `yaml:"items"`
}

type rewardsFile struct {
	Rewards []model.Reward `yaml:"rewards"`
}

// Load читает встроенные YAML-файлы каталога и проверяет их согласованность.
func Load() (*Catalog, error) {
	rawItems, err := dataFS.ReadFile("data/catalog.yaml")
	if err != nil {
		return nil, fmt.Errorf("read catalog data: %w", err)
	}

	var items itemsFile
	if err := yaml.Unmarshal(rawItems, &items); err != nil {
		return nil, fmt.Errorf("unmarshal catalog data: %w", err)
	}

	rawRewards, err := dataFS.ReadFile("data/rewards.yaml")
	if err != nil {
		return nil, fmt.Errorf("read rewards data: %w", err)
	}

	var rewards rewardsFile
	if err := yaml.Unmarshal(rawRewards, &rewards); err != nil {
		return nil, fmt.Errorf("unmarshal rewards data: %w", err)
	}

	return New(items.Items, rewards.Rewards)
}

// New собирает каталог из готовых списков. Используется напрямую в тестах.
func New(items []model.CatalogItem, rewards []model.Reward) (*Catalog, error) {
	c := &Catalog{
		items:    items,
		byID:     make(map[string]model.CatalogItem, len(items)),
		rewards:  rewards,
		rewardID: make(map[string]model.Reward, len(rewards)),
	}

	for _, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("catalog item %q has empty id", item.Name)
		}
		if _, ok := c.byID[item.ID]; ok {
			return nil, fmt.Errorf("duplicate catalog item id %q", item.ID)
		}
		if item.BasePriceCents < 0 || item.BasePoints < 0 {
			return nil, fmt.Errorf("catalog item %q has negative price or points", item.ID)
		}
		if _, ok := policyKnown(item.Category); !ok {
			return nil, fmt.Errorf("catalog item %q has unknown category %q", item.ID, item.Category)
		}
		c.byID[item.ID] = item
	}

	for _, r := range rewards {
		if r.ID == "" {
			return nil, fmt.Errorf("reward %q has empty id", r.Name)
		}
		if _, ok := c.rewardID[r.ID]; ok {
			return nil, fmt.Errorf("duplicate reward id %q", r.ID)
		}
		if r.CostPoints <= 0 {
			return nil, fmt.Errorf("reward %q has non-positive cost", r.ID)
		}
		if !r.Type.Valid() {
			return nil, fmt.Errorf("reward %q has unknown type %q", r.ID, r.Type)
		}
		c.rewardID[r.ID] = r
	}

	return c, nil
}

// PolicyForItem возвращает политику категории позиции с учётом
// переопределённой вместимости.
func PolicyForItem(item model.CatalogItem) pricing.CategoryPolicy {
	policy := pricing.PolicyFor(item.Category)
	if item.MaxGuests > 0 {
		policy.MaxGuests = item.MaxGuests
	}
	return policy
}

func policyKnown(category model.Category) (pricing.CategoryPolicy, bool) {
	switch category {
	case model.CategoryRoom, model.CategorySpa, model.CategoryActivity, model.CategoryDining:
		return pricing.PolicyFor(category), true
	default:
		return pricing.CategoryPolicy{}, false
	}
}

// Items возвращает все позиции каталога.
func (c *Catalog) Items() []model.CatalogItem {
	return c.items
}

// ItemsByCategory возвращает позиции указанной категории.
func (c *Catalog) ItemsByCategory(category model.Category) []model.CatalogItem {
	res := make([]model.CatalogItem, 0, len(c.items))
	for _, item := range c.items {
		if item.Category == category {
			res = append(res, item)
		}
	}
	return res
}

// Item возвращает позицию по идентификатору.
func (c *Catalog) Item(id string) (model.CatalogItem, error) {
	item, ok := c.byID[id]
	if !ok {
		return model.CatalogItem{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return item, nil
}

// Rewards возвращает полный каталог вознаграждений.
func (c *Catalog) Rewards() []model.Reward {
	return c.rewards
}

// Reward возвращает вознаграждение по идентификатору.
func (c *Catalog) Reward(id string) (model.Reward, error) {
	r, ok := c.rewardID[id]
	if !ok {
		return model.Reward{}, fmt.Errorf("%w: %s", ErrRewardNotFound, id)
	}
	return r, nil
}
