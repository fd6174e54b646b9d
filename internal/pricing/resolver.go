package pricing

// Field names an input or derived value of a line item.
type Field string

const (
	FieldWidth           Field = "width"
	FieldHeight          Field = "height"
	FieldUnit            Field = "unit"
	FieldQuantity        Field = "quantity"
	FieldMaterial        Field = "material"
	FieldPricePerArea    Field = "price_per_area"
	FieldUnitPrice       Field = "unit_price"
	FieldDiscountPercent Field = "discount_percent"
	FieldSquareFeet      Field = "square_feet"
	FieldMaterialUsage   Field = "material_usage"
	FieldAmount          Field = "amount"
	FieldPrintHours      Field = "print_hours"
)

// fieldOrder breaks ties between fields that become ready at the same time.
var fieldOrder = []Field{
	FieldWidth, FieldHeight, FieldUnit, FieldQuantity, FieldMaterial,
	FieldPricePerArea, FieldUnitPrice, FieldDiscountPercent,
	FieldSquareFeet, FieldMaterialUsage, FieldAmount, FieldPrintHours,
}

// EditableFields are the fields a user may edit directly.
var EditableFields = map[Field]bool{
	FieldWidth: true, FieldHeight: true, FieldUnit: true, FieldQuantity: true,
	FieldMaterial: true, FieldPricePerArea: true, FieldUnitPrice: true,
	FieldDiscountPercent: true,
}

// PriceLink selects the direction of the edge between price per area and
// unit price. Whichever side the user edited leads.
type PriceLink int

const (
	LinkNone PriceLink = iota
	LinkFromPricePerArea
	LinkFromUnitPrice
)

type edge struct{ from, to Field }

var baseEdges = []edge{
	{FieldWidth, FieldSquareFeet},
	{FieldHeight, FieldSquareFeet},
	{FieldUnit, FieldSquareFeet},
	{FieldWidth, FieldMaterialUsage},
	{FieldHeight, FieldMaterialUsage},
	{FieldUnit, FieldMaterialUsage},
	{FieldQuantity, FieldMaterialUsage},
	{FieldSquareFeet, FieldPrintHours},
	{FieldQuantity, FieldPrintHours},
	{FieldMaterial, FieldPrintHours},
	{FieldUnitPrice, FieldAmount},
	{FieldQuantity, FieldAmount},
	{FieldDiscountPercent, FieldAmount},
}

func graph(link PriceLink) []edge {
	edges := append([]edge(nil), baseEdges...)
	switch link {
	case LinkFromPricePerArea:
		edges = append(edges,
			edge{FieldPricePerArea, FieldUnitPrice},
			edge{FieldSquareFeet, FieldUnitPrice},
		)
	case LinkFromUnitPrice:
		edges = append(edges,
			edge{FieldUnitPrice, FieldPricePerArea},
			edge{FieldSquareFeet, FieldPricePerArea},
		)
	}
	return edges
}

// Plan returns the derived fields to recompute after the given fields were
// edited, in topological order of the dependency graph for link. Edited
// fields themselves are never recomputed.
func Plan(link PriceLink, edited ...Field) []Field {
	edges := graph(link)
	next := make(map[Field][]Field)
	for _, e := range edges {
		next[e.from] = append(next[e.from], e.to)
	}

	reach := make(map[Field]bool)
	stack := append([]Field(nil), edited...)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, n := range next[f] {
			if !reach[n] {
				reach[n] = true
				stack = append(stack, n)
			}
		}
	}
	for _, f := range edited {
		delete(reach, f)
	}

	indegree := make(map[Field]int)
	for _, e := range edges {
		if reach[e.from] && reach[e.to] {
			indegree[e.to]++
		}
	}

	var order []Field
	done := make(map[Field]bool)
	for len(order) < len(reach) {
		progressed := false
		for _, f := range fieldOrder {
			if !reach[f] || done[f] || indegree[f] > 0 {
				continue
			}
			done[f] = true
			order = append(order, f)
			for _, n := range next[f] {
				if reach[n] {
					indegree[n]--
				}
			}
			progressed = true
			break
		}
		if !progressed {
			// unreachable with the static graphs above; guards against a cycle
			break
		}
	}
	return order
}

// Line is the pricing state of a single line item.
type Line struct {
	Width           *float64
	Height          *float64
	Unit            string
	Material        string
	Quantity        float64
	SquareFeet      float64
	MaterialUsage   float64
	PricePerArea    float64
	UnitPrice       float64
	DiscountPercent float64
	Amount          float64
	PrintHours      float64
}

// Dimensions returns the size inputs of the line.
func (l Line) Dimensions() Dimensions {
	return Dimensions{Width: l.Width, Height: l.Height, Unit: l.Unit, Quantity: l.Quantity}
}

// Result is the outcome of resolving a line.
type Result struct {
	Line       Line
	Recomputed []Field
	Fallbacks  []Fallback
}

// Resolver keeps the derived fields of a line consistent with its inputs.
type Resolver struct {
	Calc      Calculator
	Materials MaterialTable
}

// NewResolver returns a Resolver over the given reference tables.
func NewResolver(units UnitTable, materials MaterialTable, bleedInches float64) Resolver {
	return Resolver{
		Calc:      Calculator{Units: units, BleedInches: bleedInches},
		Materials: materials,
	}
}

// Apply recomputes everything downstream of the edited fields. The input line
// is not modified.
func (r Resolver) Apply(l Line, edited ...Field) Result {
	l.PricePerArea = Round2(l.PricePerArea)
	l.UnitPrice = Round2(l.UnitPrice)
	l.DiscountPercent = ClampDiscountPercent(l.DiscountPercent)

	p := &pass{line: l}
	plan := Plan(linkFor(l, edited), edited...)
	for _, f := range plan {
		r.compute(p, f)
	}
	return Result{Line: p.line, Recomputed: plan, Fallbacks: p.fallbacks}
}

// Recompute treats every input of the line as freshly entered. It is used
// when a line item is created.
func (r Resolver) Recompute(l Line) Result {
	edited := []Field{FieldWidth, FieldHeight, FieldUnit, FieldQuantity, FieldMaterial, FieldDiscountPercent}
	switch {
	case l.PricePerArea != 0:
		edited = append(edited, FieldPricePerArea)
	case l.UnitPrice != 0:
		edited = append(edited, FieldUnitPrice)
	}
	return r.Apply(l, edited...)
}

func linkFor(l Line, edited []Field) PriceLink {
	for _, f := range edited {
		switch f {
		case FieldPricePerArea:
			return LinkFromPricePerArea
		case FieldUnitPrice:
			return LinkFromUnitPrice
		}
	}
	if l.PricePerArea != 0 {
		return LinkFromPricePerArea
	}
	return LinkNone
}

type pass struct {
	line      Line
	measured  *Measurement
	fallbacks []Fallback
}

func (p *pass) note(fb Fallback) {
	if fb == FallbackNone {
		return
	}
	for _, existing := range p.fallbacks {
		if existing == fb {
			return
		}
	}
	p.fallbacks = append(p.fallbacks, fb)
}

func (r Resolver) measure(p *pass) Measurement {
	if p.measured == nil {
		m := r.Calc.Measure(p.line.Dimensions())
		p.note(m.Fallback)
		p.measured = &m
	}
	return *p.measured
}

func (r Resolver) compute(p *pass, f Field) {
	l := &p.line
	switch f {
	case FieldSquareFeet:
		l.SquareFeet = r.measure(p).SquareFeet
	case FieldMaterialUsage:
		l.MaterialUsage = r.measure(p).MaterialUsage
	case FieldUnitPrice:
		if l.SquareFeet > 0 {
			l.UnitPrice = Round2(l.PricePerArea * l.SquareFeet)
		}
	case FieldPricePerArea:
		if l.SquareFeet > 0 {
			l.PricePerArea = Round2(l.UnitPrice / l.SquareFeet)
		}
	case FieldAmount:
		l.Amount = LineAmount(l.UnitPrice, l.Quantity, l.DiscountPercent)
	case FieldPrintHours:
		hours, fb := EstimateHours(l.SquareFeet, l.Quantity, l.Material, r.Materials)
		l.PrintHours = hours
		if l.Material != "" {
			p.note(fb)
		}
	}
}
