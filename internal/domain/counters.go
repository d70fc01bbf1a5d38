package domain

// Counter names one bucket a module can be counted in.
type Counter int

const (
	ClassLinks Counter = iota
	Links
	Files
	Labels
	Pages
	Books

	Assignments
	Quizzes
	Glossaries
	Workshops
	Lessons
	Forums
	Wikis
	Chats
	MindMaps
)

var counterNames = [...]string{
	ClassLinks:  "links_clases",
	Links:       "links",
	Files:       "archivos",
	Labels:      "labels",
	Pages:       "pags",
	Books:       "libros",
	Assignments: "tareas",
	Quizzes:     "quiz",
	Glossaries:  "glosario",
	Workshops:   "taller",
	Lessons:     "leccion",
	Forums:      "foro",
	Wikis:       "wiki",
	Chats:       "chat",
	MindMaps:    "mapaMental",
}

func (c Counter) String() string {
	if c < 0 || int(c) >= len(counterNames) {
		return "unknown"
	}
	return counterNames[c]
}

// IsResource reports whether the counter belongs to the resource bucket.
func (c Counter) IsResource() bool { return c >= ClassLinks && c <= Books }

// IsActivity reports whether the counter belongs to the activity bucket.
func (c Counter) IsActivity() bool { return c >= Assignments && c <= MindMaps }

// ResourceCounters lists the six counters summed into the resource total, in column order.
var ResourceCounters = []Counter{ClassLinks, Links, Files, Labels, Pages, Books}

// ActivityCounters lists the nine counters summed into the activity total, in column order.
var ActivityCounters = []Counter{Assignments, Quizzes, Glossaries, Workshops, Lessons, Forums, Wikis, Chats, MindMaps}

// Counters holds one value per Counter. The zero value is all zeros.
type Counters struct {
	ClassLinks int `json:"classLinks"`
	Links      int `json:"links"`
	Files      int `json:"files"`
	Labels     int `json:"labels"`
	Pages      int `json:"pages"`
	Books      int `json:"books"`

	Assignments int `json:"assignments"`
	Quizzes     int `json:"quizzes"`
	Glossaries  int `json:"glossaries"`
	Workshops   int `json:"workshops"`
	Lessons     int `json:"lessons"`
	Forums      int `json:"forums"`
	Wikis       int `json:"wikis"`
	Chats       int `json:"chats"`
	MindMaps    int `json:"mindMaps"`
}

func (c *Counters) field(k Counter) *int {
	switch k {
	case ClassLinks:
		return &c.ClassLinks
	case Links:
		return &c.Links
	case Files:
		return &c.Files
	case Labels:
		return &c.Labels
	case Pages:
		return &c.Pages
	case Books:
		return &c.Books
	case Assignments:
		return &c.Assignments
	case Quizzes:
		return &c.Quizzes
	case Glossaries:
		return &c.Glossaries
	case Workshops:
		return &c.Workshops
	case Lessons:
		return &c.Lessons
	case Forums:
		return &c.Forums
	case Wikis:
		return &c.Wikis
	case Chats:
		return &c.Chats
	case MindMaps:
		return &c.MindMaps
	}
	return nil
}

// Add increments counter k by n. Negative n is ignored so counters never decrease.
func (c *Counters) Add(k Counter, n int) {
	if n <= 0 {
		return
	}
	if p := c.field(k); p != nil {
		*p += n
	}
}

// Get returns the value of counter k.
func (c Counters) Get(k Counter) int {
	if p := c.field(k); p != nil {
		return *p
	}
	return 0
}

func (c Counters) ResourceTotal() int { return c.sum(ResourceCounters) }

func (c Counters) ActivityTotal() int { return c.sum(ActivityCounters) }

func (c Counters) sum(ks []Counter) int {
	total := 0
	for _, k := range ks {
		total += c.Get(k)
	}
	return total
}
