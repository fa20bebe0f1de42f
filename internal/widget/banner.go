package widget

import "github.com/wolfman30/askstuart/internal/countdown"

// Banner is the launch countdown badge above the bubble.
type Banner struct {
	Show  bool   `json:"show"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
}

// LaunchBanner shows "GOING LIVE!" until the launch, then nothing.
func LaunchBanner(r countdown.Remaining) Banner {
	if r.IsLive {
		return Banner{}
	}
	return Banner{Show: true, Title: "GOING LIVE!", Text: r.String()}
}
