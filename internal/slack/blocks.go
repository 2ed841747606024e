package slack

// Block Kit types, limited to what ticket notifications use.

type TextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ButtonElement struct {
	Type string      `json:"type"`
	Text *TextObject `json:"text"`
	URL  string      `json:"url"`
}

type Block struct {
	Type     string          `json:"type"`
	Text     *TextObject     `json:"text,omitempty"`
	Elements []ButtonElement `json:"elements,omitempty"`
}

// SectionBlock builds a mrkdwn section block.
func SectionBlock(text string) Block {
	return Block{
		Type: "section",
		Text: &TextObject{Type: "mrkdwn", Text: text},
	}
}

// ActionsBlock builds an actions row from the given buttons.
func ActionsBlock(buttons ...ButtonElement) Block {
	return Block{
		Type:     "actions",
		Elements: buttons,
	}
}

// LinkButton builds a button that opens a URL.
func LinkButton(label, url string) ButtonElement {
	return ButtonElement{
		Type: "button",
		Text: &TextObject{Type: "plain_text", Text: label},
		URL:  url,
	}
}
