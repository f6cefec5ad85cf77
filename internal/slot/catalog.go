package slot

// Catalog is the fixed set of bookable time slots in a clinic day.
// Every doctor shares the same catalog; there is no per-doctor
// customization. Labels are ordered by start time ascending.
type Catalog struct {
	labels []string
	index  map[string]int
}

// clinicDaySlots covers 08:00-17:00 with the 12:00-13:00 lunch hour excluded.
var clinicDaySlots = []string{
	"08:00 - 09:00",
	"09:00 - 10:00",
	"10:00 - 11:00",
	"11:00 - 12:00",
	"13:00 - 14:00",
	"14:00 - 15:00",
	"15:00 - 16:00",
	"16:00 - 17:00",
}

// NewCatalog returns the clinic's daily slot catalog.
func NewCatalog() *Catalog {
	idx := make(map[string]int, len(clinicDaySlots))
	for i, label := range clinicDaySlots {
		idx[label] = i
	}
	return &Catalog{labels: clinicDaySlots, index: idx}
}

// All returns every slot label in catalog order. The returned slice is a
// copy; callers may mutate it freely.
func (c *Catalog) All() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Contains reports whether label is a valid slot in this catalog.
func (c *Catalog) Contains(label string) bool {
	_, ok := c.index[label]
	return ok
}

// Index returns the position of label within the catalog, or -1 if the
// label is unknown.
func (c *Catalog) Index(label string) int {
	i, ok := c.index[label]
	if !ok {
		return -1
	}
	return i
}

// Len returns the number of slots in a clinic day.
func (c *Catalog) Len() int {
	return len(c.labels)
}
