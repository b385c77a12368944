package notion

import (
	"strings"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

type textContent struct {
	Content string `json:"content"`
}

type annotations struct {
	Code bool `json:"code"`
}

type richText struct {
	Type        string       `json:"type,omitempty"`
	Text        *textContent `json:"text,omitempty"`
	Annotations *annotations `json:"annotations,omitempty"`
	PlainText   string       `json:"plain_text,omitempty"`
}

func textRun(content string, code bool) richText {
	run := richText{Type: "text", Text: &textContent{Content: content}}
	if code {
		run.Annotations = &annotations{Code: true}
	}
	return run
}

type property struct {
	Type  string     `json:"type"`
	Title []richText `json:"title"`
}

type parent struct {
	Type   string `json:"type"`
	PageID string `json:"page_id"`
}

type pageObject struct {
	Object      string              `json:"object"`
	ID          string              `json:"id"`
	CreatedTime time.Time           `json:"created_time"`
	Parent      parent              `json:"parent"`
	Properties  map[string]property `json:"properties"`
}

func (p pageObject) ref() PageRef {
	ref := PageRef{ID: p.ID, CreatedAt: p.CreatedTime, ParentID: p.Parent.PageID}
	for _, prop := range p.Properties {
		if prop.Type != "title" && len(prop.Title) == 0 {
			continue
		}
		ref.Title = plainText(prop.Title)
		break
	}
	return ref
}

func plainText(runs []richText) string {
	var b strings.Builder
	for _, run := range runs {
		switch {
		case run.PlainText != "":
			b.WriteString(run.PlainText)
		case run.Text != nil:
			b.WriteString(run.Text.Content)
		}
	}
	return b.String()
}

type childPage struct {
	Title string `json:"title"`
}

type block struct {
	Object      string     `json:"object"`
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	CreatedTime time.Time  `json:"created_time"`
	ChildPage   *childPage `json:"child_page,omitempty"`
}

type blockList struct {
	Results    []block `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor string  `json:"next_cursor"`
}

type pageList struct {
	Results    []pageObject `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

type paragraph struct {
	RichText []richText `json:"rich_text"`
}

type paragraphBlock struct {
	Object    string    `json:"object"`
	Type      string    `json:"type"`
	Paragraph paragraph `json:"paragraph"`
}

// paragraphBlocks builds the appended content. Long text spills into further
// paragraphs once a block reaches the run limit.
func paragraphBlocks(text string, at time.Time) []paragraphBlock {
	runs := []richText{textRun(at.Format(timestampLayout), true)}
	for i, chunk := range splitRunes(text, maxRunRunes) {
		if i == 0 {
			chunk = " " + chunk
		}
		runs = append(runs, textRun(chunk, false))
	}
	var blocks []paragraphBlock
	for len(runs) > 0 {
		n := len(runs)
		if n > maxRunsPerBlock {
			n = maxRunsPerBlock
		}
		blocks = append(blocks, paragraphBlock{
			Object:    "block",
			Type:      "paragraph",
			Paragraph: paragraph{RichText: runs[:n]},
		})
		runs = runs[n:]
	}
	return blocks
}

// splitRunes cuts s into pieces of at most limit runes. The leading space
// added to the first piece is accounted for.
func splitRunes(s string, limit int) []string {
	rs := []rune(s)
	if len(rs) == 0 {
		return nil
	}
	var out []string
	first := limit - 1
	for len(rs) > 0 {
		n := limit
		if out == nil {
			n = first
		}
		if n > len(rs) {
			n = len(rs)
		}
		out = append(out, string(rs[:n]))
		rs = rs[n:]
	}
	return out
}
