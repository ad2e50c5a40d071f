package contracts

// PageCopy is the marketing copy of one landing page
type PageCopy struct {
	Slug     string        `json:"slug"`
	Title    string        `json:"title"`
	Sections []PageSection `json:"sections"`
}

// PageSection is one block of copy. HTML is what the content API delivered,
// Text is its plain text rendition.
type PageSection struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	HTML  string `json:"html"`
	Text  string `json:"text"`
}

// Section returns the section with key, if present
func (p *PageCopy) Section(key string) (PageSection, bool) {
	for _, s := range p.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return PageSection{}, false
}
