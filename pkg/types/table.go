package types

// TableCell is one cell of a raw parameter table as served by the management
// system. Text columns populate StringValue, numeric columns DoubleValue.
type TableCell struct {
	StringValue string  `json:"string_value,omitempty"`
	DoubleValue float64 `json:"double_value,omitempty"`
}

// Table is a columnar table snapshot: Columns[c][r] is the cell of row r in
// column c. The first column is always the table's index (primary key).
type Table struct {
	Columns [][]TableCell `json:"columns"`
}
