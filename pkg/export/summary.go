package export

import (
	"strconv"

	"github.com/noah-isme/health-campaign-api/pkg/stats"
)

// Column labels per language. The first entry labels the topic column, the
// rest follow stats.Fields.
var columnLabels = map[string][]string{
	"en": {"Topic", "Individual meetings", "Lectures", "Seminars", "Health events"},
	"ar": {"الموضوع", "اللقاءات الفردية", "المحاضرات", "الندوات", "المناسبات الصحية"},
}

var totalLabels = map[string]string{
	"en": "Total",
	"ar": "المجموع",
}

// SummaryHeaders returns the fixed column order for language, falling back to English.
func SummaryHeaders(language string) []string {
	if labels, ok := columnLabels[language]; ok {
		return append([]string(nil), labels...)
	}
	return append([]string(nil), columnLabels["en"]...)
}

// SummaryDataset lays a rollup out as a heading row per category, one row per
// topic and a closing grand total row. Unclassified topics follow the registered
// categories under their own heading. Row labels use the registry's Arabic names
// for "ar" where they exist.
func SummaryDataset(summary stats.Summary, language string) Dataset {
	headers := SummaryHeaders(language)
	total, ok := totalLabels[language]
	if !ok {
		total = totalLabels["en"]
	}
	ds := Dataset{Headers: headers}

	add := func(label string, values *stats.SubItem, style RowStyle) {
		row := map[string]string{headers[0]: label}
		if values != nil {
			for i, f := range stats.Fields {
				row[headers[i+1]] = strconv.FormatInt(values.Get(f), 10)
			}
		}
		ds.Rows = append(ds.Rows, row)
		ds.Styles = append(ds.Styles, style)
	}

	for _, c := range summary.Categories {
		add(c.Category.Label(language), nil, RowHeading)
		for _, line := range c.Topics {
			values := line.Values
			add(line.Topic.Label(language), &values, RowPlain)
		}
	}
	if len(summary.Unclassified) > 0 {
		add(stats.UnclassifiedCategory.Label(language), nil, RowHeading)
		for _, line := range summary.Unclassified {
			values := line.Values
			add(line.Topic.Label(language), &values, RowPlain)
		}
	}
	grand := summary.GrandTotal
	add(total, &grand, RowTotal)
	return ds
}
