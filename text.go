package bird

import (
	"bytes"
	"encoding/json"
	"strings"
)

// tweetText picks the richest text a tweet node carries: article, then note
// tweet, then legacy full_text.
func tweetText(node *tweetNode) string {
	if text := articleText(node.Article); text != "" {
		return text
	}
	if text := noteTweetText(node.NoteTweet.NoteTweetResults.Result); text != "" {
		return text
	}
	return strings.TrimSpace(node.Legacy.FullText)
}

// articleText renders an article as "title\n\nbody". The body is looked up
// along the known paths; a body equal to the title counts as absent and
// falls back to every text and title string found in the article.
func articleText(raw json.RawMessage) string {
	var article map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &article) != nil || len(article) == 0 {
		return ""
	}
	result, _ := lookup(article, "article_results", "result").(map[string]any)
	if len(result) == 0 {
		result = article
	}

	title := firstText(lookup(result, "title"), lookup(article, "title"))
	var bodyPaths []any
	for _, root := range []map[string]any{result, article} {
		bodyPaths = append(bodyPaths, lookup(root, "plain_text"))
	}
	for _, root := range []map[string]any{result, article} {
		bodyPaths = append(bodyPaths,
			lookup(root, "body", "text"),
			lookup(root, "body", "richtext", "text"),
			lookup(root, "body", "rich_text", "text"),
			lookup(root, "content", "text"),
			lookup(root, "content", "richtext", "text"),
			lookup(root, "content", "rich_text", "text"),
			lookup(root, "text"),
			lookup(root, "richtext", "text"),
			lookup(root, "rich_text", "text"),
		)
	}
	body := firstText(bodyPaths...)
	if body != "" && title != "" && body == title {
		body = ""
	}

	if body == "" {
		var wrapper struct {
			ArticleResults struct {
				Result json.RawMessage `json:"result"`
			} `json:"article_results"`
		}
		_ = json.Unmarshal(raw, &wrapper)
		collected := append(collectTextFields(wrapper.ArticleResults.Result), collectTextFields(raw)...)
		var parts []string
		seen := make(map[string]bool)
		for _, v := range collected {
			if seen[v] || v == title {
				continue
			}
			seen[v] = true
			parts = append(parts, v)
		}
		body = strings.Join(parts, "\n\n")
	}

	switch {
	case title != "" && body != "" && !strings.HasPrefix(body, title):
		return title + "\n\n" + body
	case body != "":
		return body
	default:
		return title
	}
}

// noteTweetText reads long-form tweet text.
func noteTweetText(raw json.RawMessage) string {
	var note map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &note) != nil || len(note) == 0 {
		return ""
	}
	return firstText(
		lookup(note, "text"),
		lookup(note, "richtext", "text"),
		lookup(note, "rich_text", "text"),
		lookup(note, "content", "text"),
		lookup(note, "content", "richtext", "text"),
		lookup(note, "content", "rich_text", "text"),
	)
}

// lookup walks nested objects by key and returns nil on any miss.
func lookup(v any, path ...string) any {
	for _, key := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[key]
	}
	return v
}

// firstText returns the first non-blank string, trimmed.
func firstText(values ...any) string {
	for _, v := range values {
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// collectTextFields returns every non-blank "text" or "title" string value
// in raw, in document order.
func collectTextFields(raw []byte) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var out []string
	if err := walkTextFields(dec, "", &out); err != nil {
		return nil
	}
	return out
}

func walkTextFields(dec *json.Decoder, key string, out *[]string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return err
				}
				k, _ := kt.(string)
				if err := walkTextFields(dec, k, out); err != nil {
					return err
				}
			}
		case '[':
			for dec.More() {
				if err := walkTextFields(dec, "", out); err != nil {
					return err
				}
			}
		}
		// closing delimiter
		_, err := dec.Token()
		return err
	case string:
		if key == "text" || key == "title" {
			if s := strings.TrimSpace(v); s != "" {
				*out = append(*out, s)
			}
		}
	}
	return nil
}
