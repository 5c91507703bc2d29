package model

// SlideInput is one page of a deck as submitted to the pipeline
type SlideInput struct {
	SlideNumber int    `json:"slideNumber"`
	Text        string `json:"text"`
	ImageBase64 string `json:"imageBase64,omitempty"` // PNG, optionally as a data URL
}

// HasContent reports whether the input carries text or an image
func (s SlideInput) HasContent() bool {
	return s.Text != "" || s.ImageBase64 != ""
}

// Slide is the unit of work: one slide with the facts verified for it.
// Error is set when the per-slide pipeline stopped early; Facts then holds
// whatever completed before the stop.
type Slide struct {
	SlideNumber int    `json:"slideNumber"`
	Text        string `json:"text"`
	Facts       []Fact `json:"facts"`
	Error       string `json:"error,omitempty"`
}

// NewSlide creates an empty slide result for the given input
func NewSlide(in SlideInput) Slide {
	return Slide{
		SlideNumber: in.SlideNumber,
		Text:        in.Text,
		Facts:       []Fact{},
	}
}
