package gateway

// Query is a logical select: one table, optional embedded relations,
// equality filters, ordering and a limit.
type Query struct {
	Table   string
	Columns []string // empty means all columns
	Embeds  []Embed
	Filters []Eq
	Order   []Order
	Limit   int
}

// Eq is an equality predicate on a column.
type Eq struct {
	Column string
	Value  string
}

type Order struct {
	Column string
	Desc   bool
}

// Embed attaches columns of a related row as a nested object named Alias,
// joined by Table.id = <base>.ForeignKey.
type Embed struct {
	Alias      string
	Table      string
	ForeignKey string
	Columns    []string
}

// Returning shapes the record echoed back by Insert and Update.
type Returning struct {
	Embeds []Embed
}

// Where adds an equality filter and returns q for chaining.
func (q Query) Where(column, value string) Query {
	q.Filters = append(append([]Eq(nil), q.Filters...), Eq{Column: column, Value: value})
	return q
}
