package bird

type mediaSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type mediaNode struct {
	Type          string `json:"type"`
	MediaURLHTTPS string `json:"media_url_https"`
	Sizes         struct {
		Large  *mediaSize `json:"large"`
		Medium *mediaSize `json:"medium"`
		Small  *mediaSize `json:"small"`
	} `json:"sizes"`
	VideoInfo *struct {
		DurationMillis *int `json:"duration_millis"`
		Variants       []struct {
			Bitrate     *int   `json:"bitrate"`
			ContentType string `json:"content_type"`
			URL         string `json:"url"`
		} `json:"variants"`
	} `json:"video_info"`
}

// extractMedia reads extended_entities.media, falling back to entities.media.
// Items without a type or URL are skipped.
func extractMedia(node *tweetNode) []Media {
	raw := node.Legacy.ExtendedEntities.Media
	if len(raw) == 0 {
		raw = node.Legacy.Entities.Media
	}
	var out []Media
	for _, m := range raw {
		if m.Type == "" || m.MediaURLHTTPS == "" {
			continue
		}
		item := Media{Type: m.Type, URL: m.MediaURLHTTPS}
		if size := m.Sizes.Large; size != nil {
			item.Width, item.Height = size.W, size.H
		} else if size := m.Sizes.Medium; size != nil {
			item.Width, item.Height = size.W, size.H
		}
		if m.Sizes.Small != nil {
			item.PreviewURL = m.MediaURLHTTPS + ":small"
		}
		if (m.Type == "video" || m.Type == "animated_gif") && m.VideoInfo != nil {
			item.VideoURL = bestVariant(m)
			if m.VideoInfo.DurationMillis != nil {
				item.DurationMs = *m.VideoInfo.DurationMillis
			}
		}
		out = append(out, item)
	}
	return out
}

// bestVariant returns the highest-bitrate mp4, or the first mp4 when none
// declares a bitrate.
func bestVariant(m mediaNode) string {
	var first, best string
	bestRate := -1
	for _, v := range m.VideoInfo.Variants {
		if v.ContentType != "video/mp4" || v.URL == "" {
			continue
		}
		if first == "" {
			first = v.URL
		}
		if v.Bitrate != nil && *v.Bitrate > bestRate {
			best, bestRate = v.URL, *v.Bitrate
		}
	}
	if best != "" {
		return best
	}
	return first
}
