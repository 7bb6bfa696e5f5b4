package livechat

import (
	"encoding/json"
	"testing"
)

// wrapActions builds a payload with the full continuation path around the
// given actions JSON array.
func wrapActions(actions string) []byte {
	return []byte(`{"continuationContents":{"liveChatContinuation":{"actions":` + actions + `}}}`)
}

func textMessageAction(runs string) string {
	return `{"addChatItemAction":{"item":{"liveChatTextMessageRenderer":{"message":{"runs":` + runs + `}}}}}`
}

func TestParseBatchUnrecognizedDocuments(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{"continuationContents":`},
		{"empty object", `{}`},
		{"continuation contents wrong type", `{"continuationContents":"nope"}`},
		{"missing live chat continuation", `{"continuationContents":{}}`},
		{"live chat continuation wrong type", `{"continuationContents":{"liveChatContinuation":7}}`},
		{"missing actions", `{"continuationContents":{"liveChatContinuation":{}}}`},
		{"actions wrong type", `{"continuationContents":{"liveChatContinuation":{"actions":{}}}}`},
		{"actions null", `{"continuationContents":{"liveChatContinuation":{"actions":null}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			batch, ok := ParseBatch([]byte(tc.raw))
			if ok {
				t.Fatalf("expected unrecognized, got batch of %d", len(batch))
			}
		})
	}
}

func TestParseBatchEmptyActionsIsRecognized(t *testing.T) {
	batch, ok := ParseBatch(wrapActions(`[]`))
	if !ok {
		t.Fatal("empty action list should still count as a chat payload")
	}
	if len(batch) != 0 {
		t.Fatalf("expected empty batch, got %d", len(batch))
	}
}

func TestParseBatchTextAndEmojiRun(t *testing.T) {
	raw := wrapActions(`[` + textMessageAction(`[{"text":"hi "},{"emoji":{"image":{"thumbnails":[{"width":10,"url":"e.png"}]}}}]`) + `]`)
	batch, ok := ParseBatch(raw)
	if !ok {
		t.Fatal("expected recognized payload")
	}
	if len(batch) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(batch))
	}
	want := []Element{TextElement("hi "), EmojiElement("e.png")}
	got := batch[0].Elements
	if len(got) != len(want) {
		t.Fatalf("expected %d elements, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestParseBatchEmojiThumbnailSelection(t *testing.T) {
	cases := []struct {
		name       string
		thumbnails string
		wantURL    string
		wantDrop   bool
	}{
		{"widest wins", `[{"width":100,"url":"a"},{"width":200,"url":"b"}]`, "b", false},
		{"widest wins regardless of order", `[{"width":200,"url":"b"},{"width":100,"url":"a"}]`, "b", false},
		{"single candidate without width", `[{"url":"c"}]`, "c", false},
		{"widthless excluded when several", `[{"url":"x"},{"width":50,"url":"y"}]`, "y", false},
		{"all widthless yields nothing", `[{"url":"x"},{"url":"y"}]`, "", true},
		{"no candidates yields nothing", `[]`, "", true},
		{"zero width still declared", `[{"width":0,"url":"z"},{"url":"x"}]`, "z", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := wrapActions(`[` + textMessageAction(`[{"emoji":{"image":{"thumbnails":`+tc.thumbnails+`}}}]`) + `]`)
			batch, ok := ParseBatch(raw)
			if !ok {
				t.Fatal("expected recognized payload")
			}
			if tc.wantDrop {
				// The emoji run yields no element, leaving the comment empty,
				// so the whole comment is dropped.
				if len(batch) != 0 {
					t.Fatalf("expected comment dropped, got %d comments", len(batch))
				}
				return
			}
			if len(batch) != 1 || len(batch[0].Elements) != 1 {
				t.Fatalf("expected exactly one emoji element, got %+v", batch)
			}
			el := batch[0].Elements[0]
			if el.Type != ElementEmoji || el.URL != tc.wantURL {
				t.Errorf("got %+v, want emoji url %q", el, tc.wantURL)
			}
		})
	}
}

func TestParseBatchSkipsForeignActions(t *testing.T) {
	raw := wrapActions(`[
		{"markChatItemAsDeletedAction":{"targetItemId":"abc"}},
		` + textMessageAction(`[{"text":"first"}]`) + `,
		{"addChatItemAction":{"item":{"liveChatMembershipItemRenderer":{}}}},
		"garbage entry",
		` + textMessageAction(`[{"text":"second"}]`) + `
	]`)
	batch, ok := ParseBatch(raw)
	if !ok {
		t.Fatal("expected recognized payload")
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(batch))
	}
	if batch[0].Elements[0].Content != "first" || batch[1].Elements[0].Content != "second" {
		t.Errorf("order not preserved: %+v", batch)
	}
}

func TestParseBatchDropsEmptyComments(t *testing.T) {
	raw := wrapActions(`[
		` + textMessageAction(`[{"unknownRun":true},{"emoji":{"image":{"thumbnails":[]}}}]`) + `,
		` + textMessageAction(`[{"text":"kept"}]`) + `,
		` + textMessageAction(`[]`) + `
	]`)
	batch, ok := ParseBatch(raw)
	if !ok {
		t.Fatal("expected recognized payload")
	}
	if len(batch) != 1 {
		t.Fatalf("batch length must count valid comments only, got %d", len(batch))
	}
	if batch[0].Elements[0].Content != "kept" {
		t.Errorf("unexpected surviving comment: %+v", batch[0])
	}
}

func TestParseBatchEmojiWinsOverText(t *testing.T) {
	raw := wrapActions(`[` + textMessageAction(`[{"text":"ignored","emoji":{"image":{"thumbnails":[{"width":24,"url":"both.png"}]}}}]`) + `]`)
	batch, ok := ParseBatch(raw)
	if !ok || len(batch) != 1 {
		t.Fatalf("expected one comment, got ok=%v batch=%+v", ok, batch)
	}
	el := batch[0].Elements[0]
	if el.Type != ElementEmoji || el.URL != "both.png" {
		t.Errorf("emoji descriptor should take precedence, got %+v", el)
	}
}

func TestParseBatchEmptyTextRunIsKept(t *testing.T) {
	raw := wrapActions(`[` + textMessageAction(`[{"text":""}]`) + `]`)
	batch, ok := ParseBatch(raw)
	if !ok || len(batch) != 1 {
		t.Fatalf("expected one comment, got ok=%v batch=%+v", ok, batch)
	}
	el := batch[0].Elements[0]
	if el.Type != ElementText || el.Content != "" {
		t.Errorf("literal empty text should survive, got %+v", el)
	}
}

func TestCommentWireShape(t *testing.T) {
	c := Comment{Elements: []Element{TextElement("hi "), EmojiElement("e.png")}}
	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"elements":[{"type":"text","content":"hi "},{"type":"emoji","url":"e.png"}]}`
	if string(b) != want {
		t.Errorf("got %s want %s", b, want)
	}
}
