package stats

// TopicLine is one topic row of a summary.
type TopicLine struct {
	Topic  Topic   `json:"topic"`
	Values SubItem `json:"values"`
}

// CategoryTotal groups the lines of one category with their sum.
type CategoryTotal struct {
	Category Category    `json:"category"`
	Topics   []TopicLine `json:"topics"`
	Total    SubItem     `json:"total"`
}

// Summary is an aggregate grouped by the registry.
type Summary struct {
	Categories        []CategoryTotal `json:"categories"`
	Unclassified      []TopicLine     `json:"unclassified"`
	UnclassifiedTotal SubItem         `json:"unclassifiedTotal"`
	GrandTotal        SubItem         `json:"grandTotal"`
}

// UnclassifiedCategory is the synthetic bucket for topics the registry does not know.
var UnclassifiedCategory = Category{ID: "unclassified", Name: "Unclassified", NameAr: "غير مصنف", Order: 1 << 30, IsActive: true}

// Rollup groups agg by the registry. Every registered topic gets a line, zero when
// absent from agg. Aggregate keys without a registered topic or category land in
// Unclassified instead of being dropped, so GrandTotal always equals agg.Total().
// Inactive entries are included; use Visible to filter them for display.
func Rollup(agg TopicMap, reg *Registry) Summary {
	var summary Summary
	seen := make(map[string]struct{}, len(agg))

	for _, ct := range reg.Ordered() {
		total := CategoryTotal{Category: ct.Category, Topics: make([]TopicLine, 0, len(ct.Topics))}
		for _, t := range ct.Topics {
			v := agg[t.ID]
			seen[t.ID] = struct{}{}
			total.Topics = append(total.Topics, TopicLine{Topic: t, Values: v})
			total.Total = total.Total.Plus(v)
		}
		summary.Categories = append(summary.Categories, total)
		summary.GrandTotal = summary.GrandTotal.Plus(total.Total)
	}

	for _, id := range agg.Keys() {
		if _, ok := seen[id]; ok {
			continue
		}
		t, known := reg.Topic(id)
		if !known {
			t = Topic{ID: id, Name: id, IsActive: true}
		}
		t.CategoryID = UnclassifiedCategory.ID
		v := agg[id]
		summary.Unclassified = append(summary.Unclassified, TopicLine{Topic: t, Values: v})
		summary.UnclassifiedTotal = summary.UnclassifiedTotal.Plus(v)
	}
	summary.GrandTotal = summary.GrandTotal.Plus(summary.UnclassifiedTotal)
	return summary
}

// Visible drops inactive categories and topics from the listings. Totals are
// left untouched so displayed sums still reconcile with the stored data.
func (s Summary) Visible() Summary {
	out := Summary{
		Unclassified:      append([]TopicLine(nil), s.Unclassified...),
		UnclassifiedTotal: s.UnclassifiedTotal,
		GrandTotal:        s.GrandTotal,
	}
	for _, c := range s.Categories {
		if !c.Category.IsActive {
			continue
		}
		vc := CategoryTotal{Category: c.Category, Total: c.Total}
		for _, line := range c.Topics {
			if line.Topic.IsActive {
				vc.Topics = append(vc.Topics, line)
			}
		}
		out.Categories = append(out.Categories, vc)
	}
	return out
}

// Highlight is a named call-out computed from an aggregate.
type Highlight struct {
	Key   string
	Label string
	// Match selects contributing topics. Nil matches every topic. Unregistered
	// topics are passed with the zero Category.
	Match func(Topic, Category) bool
	Field Field
}

// HighlightValue is an evaluated Highlight.
type HighlightValue struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// EvaluateHighlights computes each highlight over agg in the given order.
func EvaluateHighlights(agg TopicMap, reg *Registry, highlights []Highlight) []HighlightValue {
	out := make([]HighlightValue, 0, len(highlights))
	keys := agg.Keys()
	for _, h := range highlights {
		var value int64
		for _, id := range keys {
			t, c, ok := reg.Classify(id)
			if !ok {
				if t.ID == "" {
					t = Topic{ID: id, Name: id, IsActive: true}
				}
				c = Category{}
			}
			if h.Match != nil && !h.Match(t, c) {
				continue
			}
			value += agg[id].Get(h.Field)
		}
		out = append(out, HighlightValue{Key: h.Key, Label: h.Label, Value: value})
	}
	return out
}
