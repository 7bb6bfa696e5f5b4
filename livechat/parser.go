package livechat

import "encoding/json"

// ParseBatch extracts the ordered comments from one chat-polling response
// body. The second return is false when the document does not carry a live
// chat continuation at all (heartbeats, malformed payloads, unrelated
// responses). A recognized document with no usable comments yields an empty
// batch and true.
//
// Individual actions that are not text chat messages, and runs that carry
// neither text nor a resolvable emoji, are skipped without failing the batch.
// A message left with zero elements after filtering is dropped entirely.
func ParseBatch(raw []byte) ([]Comment, bool) {
	var doc struct {
		ContinuationContents *struct {
			LiveChatContinuation *struct {
				Actions []json.RawMessage `json:"actions"`
			} `json:"liveChatContinuation"`
		} `json:"continuationContents"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false
	}
	if doc.ContinuationContents == nil || doc.ContinuationContents.LiveChatContinuation == nil {
		return nil, false
	}
	actions := doc.ContinuationContents.LiveChatContinuation.Actions
	if actions == nil {
		return nil, false
	}

	batch := make([]Comment, 0, len(actions))
	for _, a := range actions {
		if c, ok := parseAction(a); ok {
			batch = append(batch, c)
		}
	}
	return batch, true
}

func parseAction(raw json.RawMessage) (Comment, bool) {
	var act struct {
		AddChatItemAction *struct {
			Item struct {
				LiveChatTextMessageRenderer *struct {
					Message struct {
						Runs []json.RawMessage `json:"runs"`
					} `json:"message"`
				} `json:"liveChatTextMessageRenderer"`
			} `json:"item"`
		} `json:"addChatItemAction"`
	}
	if err := json.Unmarshal(raw, &act); err != nil {
		return Comment{}, false
	}
	if act.AddChatItemAction == nil {
		return Comment{}, false
	}
	renderer := act.AddChatItemAction.Item.LiveChatTextMessageRenderer
	if renderer == nil {
		return Comment{}, false
	}

	elems := make([]Element, 0, len(renderer.Message.Runs))
	for _, r := range renderer.Message.Runs {
		if el, ok := parseRun(r); ok {
			elems = append(elems, el)
		}
	}
	if len(elems) == 0 {
		return Comment{}, false
	}
	return Comment{Elements: elems}, true
}

// parseRun converts one message run. An emoji descriptor wins over text when
// both are present; a run matching neither shape yields nothing.
func parseRun(raw json.RawMessage) (Element, bool) {
	var run struct {
		Text  *string `json:"text"`
		Emoji *struct {
			Image struct {
				Thumbnails []thumbnail `json:"thumbnails"`
			} `json:"image"`
		} `json:"emoji"`
	}
	if err := json.Unmarshal(raw, &run); err != nil {
		return Element{}, false
	}
	if run.Emoji != nil {
		url, ok := largestThumbnail(run.Emoji.Image.Thumbnails)
		if !ok {
			return Element{}, false
		}
		return EmojiElement(url), true
	}
	if run.Text != nil {
		return TextElement(*run.Text), true
	}
	return Element{}, false
}

type thumbnail struct {
	URL   string `json:"url"`
	Width *int   `json:"width"`
}

// largestThumbnail picks the emoji image to use: with several candidates the
// widest declared one wins and width-less entries are ignored; a single
// candidate is taken as-is; none at all resolves to nothing.
func largestThumbnail(candidates []thumbnail) (string, bool) {
	switch len(candidates) {
	case 0:
		return "", false
	case 1:
		return candidates[0].URL, true
	}
	best := ""
	bestWidth := -1
	for _, c := range candidates {
		if c.Width == nil {
			continue
		}
		if *c.Width > bestWidth {
			bestWidth = *c.Width
			best = c.URL
		}
	}
	if bestWidth < 0 {
		return "", false
	}
	return best, true
}
