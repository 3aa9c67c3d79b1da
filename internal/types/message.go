package types

// Message is one aggregated notification for a recipient group
type Message struct {
	ID      string
	Title   string
	Content string
	To      []string
	CC      []string
	Alerts  int
}
