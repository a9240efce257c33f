package normalize

import "strings"

// Field is a canonical QuoteRecord column.
type Field int

// Canonical fields.
const (
	FieldEntityKey Field = iota
	FieldDate
	FieldQuote
	FieldNetAssets
	FieldSubscriptions
	FieldRedemptions
	FieldHolders
)

var fieldNames = [...]string{
	FieldEntityKey:     "entity_key",
	FieldDate:          "as_of_date",
	FieldQuote:         "quote_value",
	FieldNetAssets:     "net_assets",
	FieldSubscriptions: "net_subscriptions",
	FieldRedemptions:   "net_redemptions",
	FieldHolders:       "holder_count",
}

func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return "unknown"
}

// Alias lists every raw column name a canonical field has been published under.
// When several are present in one file, the first non-empty cell in Columns
// order wins for each row.
type Alias struct {
	Field    Field
	Columns  []string
	Required bool
}

// Aliases is the alias table consulted for every file.
var Aliases = []Alias{
	{Field: FieldEntityKey, Columns: []string{"CNPJ_FUNDO_CLASSE", "CNPJ_FUNDO"}, Required: true},
	{Field: FieldDate, Columns: []string{"DT_COMPTC"}, Required: true},
	{Field: FieldQuote, Columns: []string{"VL_QUOTA"}},
	{Field: FieldNetAssets, Columns: []string{"VL_PATRIM_LIQ"}},
	{Field: FieldSubscriptions, Columns: []string{"CAPTC_DIA"}},
	{Field: FieldRedemptions, Columns: []string{"RESG_DIA"}},
	{Field: FieldHolders, Columns: []string{"NR_COTST"}},
}

// ObsoleteColumns are known columns that carry nothing the warehouse keeps.
var ObsoleteColumns = []string{"TP_FUNDO", "TP_FUNDO_CLASSE", "ID_SUBCLASSE", "VL_TOTAL"}

// layout maps each canonical field to the header positions it may be read from.
type layout struct {
	columns map[Field][]int
	names   []string // normalized header, for warnings
	dropped []string // obsolete columns found
	unknown []string // unrecognized columns found
}

func normalizeHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	return strings.ToUpper(strings.TrimSpace(name))
}

// resolveLayout applies the alias table to a header row.
func resolveLayout(header []string) (*layout, error) {
	l := &layout{
		columns: make(map[Field][]int, len(Aliases)),
		names:   make([]string, len(header)),
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		l.names[i] = name
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	known := make(map[string]bool)
	for _, a := range Aliases {
		for _, col := range a.Columns {
			known[col] = true
			if i, ok := index[col]; ok {
				l.columns[a.Field] = append(l.columns[a.Field], i)
			}
		}
	}
	obsolete := make(map[string]bool, len(ObsoleteColumns))
	for _, col := range ObsoleteColumns {
		obsolete[col] = true
	}
	for _, name := range l.names {
		switch {
		case known[name]:
		case obsolete[name]:
			l.dropped = append(l.dropped, name)
		default:
			l.unknown = append(l.unknown, name)
		}
	}

	var missing []string
	for _, a := range Aliases {
		if a.Required && len(l.columns[a.Field]) == 0 {
			missing = append(missing, a.Field.String())
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing, Header: l.names}
	}

	return l, nil
}

// cell returns the first non-empty value for a field, and the column it came from.
func (l *layout) cell(record []string, f Field) (string, string) {
	for _, i := range l.columns[f] {
		if i >= len(record) {
			continue
		}
		if v := strings.TrimSpace(record[i]); v != "" {
			return v, l.names[i]
		}
	}
	return "", ""
}
