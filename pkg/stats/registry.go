package stats

import (
	"sort"
)

// TopicSeparator joins a category id and a topic slug in generated topic ids.
const TopicSeparator = "."

// Category groups topics for presentation.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	NameAr      string `json:"nameAr,omitempty"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
	IsActive    bool   `json:"isActive"`
}

// Label returns the Arabic name for "ar" when one is set, otherwise Name.
func (c Category) Label(language string) string {
	return localized(c.Name, c.NameAr, language)
}

// Topic is a single statistic line belonging to a Category.
type Topic struct {
	ID         string `json:"id"`
	CategoryID string `json:"categoryId"`
	Name       string `json:"name"`
	NameAr     string `json:"nameAr,omitempty"`
	Order      int    `json:"order"`
	IsActive   bool   `json:"isActive"`
}

// Label returns the Arabic name for "ar" when one is set, otherwise Name.
func (t Topic) Label(language string) string {
	return localized(t.Name, t.NameAr, language)
}

func localized(name, nameAr, language string) string {
	if language == "ar" && nameAr != "" {
		return nameAr
	}
	return name
}

// CategoryTopics is one category with its topics in display order.
type CategoryTopics struct {
	Category Category `json:"category"`
	Topics   []Topic  `json:"topics"`
}

// Registry is an immutable snapshot of categories and topics.
type Registry struct {
	categories map[string]Category
	topics     map[string]Topic
	ordered    []CategoryTopics
}

// NewRegistry indexes the given categories and topics. Later duplicates win.
func NewRegistry(categories []Category, topics []Topic) *Registry {
	r := &Registry{
		categories: make(map[string]Category, len(categories)),
		topics:     make(map[string]Topic, len(topics)),
	}
	for _, c := range categories {
		r.categories[c.ID] = c
	}
	for _, t := range topics {
		r.topics[t.ID] = t
	}

	byCategory := make(map[string][]Topic, len(r.categories))
	for _, t := range r.topics {
		if _, ok := r.categories[t.CategoryID]; ok {
			byCategory[t.CategoryID] = append(byCategory[t.CategoryID], t)
		}
	}
	ordered := make([]CategoryTopics, 0, len(r.categories))
	for _, c := range r.categories {
		list := byCategory[c.ID]
		sort.Slice(list, func(i, j int) bool {
			if list[i].Order != list[j].Order {
				return list[i].Order < list[j].Order
			}
			if list[i].Name != list[j].Name {
				return list[i].Name < list[j].Name
			}
			return list[i].ID < list[j].ID
		})
		ordered = append(ordered, CategoryTopics{Category: c, Topics: list})
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i].Category, ordered[j].Category
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	r.ordered = ordered
	return r
}

// Category looks up a category by id.
func (r *Registry) Category(id string) (Category, bool) {
	if r == nil {
		return Category{}, false
	}
	c, ok := r.categories[id]
	return c, ok
}

// Topic looks up a topic by id.
func (r *Registry) Topic(id string) (Topic, bool) {
	if r == nil {
		return Topic{}, false
	}
	t, ok := r.topics[id]
	return t, ok
}

// Classify returns the topic and its category when both are registered.
func (r *Registry) Classify(topicID string) (Topic, Category, bool) {
	t, ok := r.Topic(topicID)
	if !ok {
		return Topic{}, Category{}, false
	}
	c, ok := r.Category(t.CategoryID)
	if !ok {
		return t, Category{}, false
	}
	return t, c, true
}

// Ordered returns categories sorted by Order then Name, each with its topics sorted the same way.
// Topics whose category is not registered are omitted.
func (r *Registry) Ordered() []CategoryTopics {
	if r == nil {
		return nil
	}
	out := make([]CategoryTopics, len(r.ordered))
	for i, ct := range r.ordered {
		out[i] = CategoryTopics{Category: ct.Category, Topics: append([]Topic(nil), ct.Topics...)}
	}
	return out
}
