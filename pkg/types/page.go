package types

// Column types understood by the reporting layer.
const (
	ColumnString   = "string"
	ColumnDouble   = "double"
	ColumnDateTime = "datetime"
)

// Column describes one output column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Argument describes one input argument a consumer must supply.
type Argument struct {
	Name     string `json:"name"`
	Param    string `json:"param"` // query parameter name on the REST API
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Cell is one value in an output row. DisplayValue is set when the
// presentation differs from the raw value (e.g. "15.5 %").
type Cell struct {
	Value        any    `json:"value"`
	DisplayValue string `json:"display_value,omitempty"`
}

// Row is one output record; cells follow the column order.
type Row struct {
	Cells []Cell `json:"cells"`
}

// Page is a single delivery unit. The feed always answers with one page.
type Page struct {
	Rows        []Row `json:"rows"`
	HasNextPage bool  `json:"has_next_page"`
}

// EmptyPage returns a page with no rows and no further pages.
func EmptyPage() Page {
	return Page{Rows: []Row{}}
}
