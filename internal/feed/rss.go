package feed

import (
	"encoding/xml"
	"fmt"
)

const itunesNS = "http://www.itunes.com/dtds/podcast-1.0.dtd"

// Channel is the fixed metadata of a published feed.
type Channel struct {
	Title       string
	Link        string
	Description string
}

// Entry is one resolved feed item.
type Entry struct {
	GUID            string
	Title           string
	RabbiName       string
	MediaURL        string
	DurationSeconds int
	PubDate         string
}

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	ITunes  string     `xml:"xmlns:itunes,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string       `xml:"title"`
	Description string       `xml:"description,omitempty"`
	Enclosure   rssEnclosure `xml:"enclosure"`
	GUID        rssGUID      `xml:"guid"`
	PubDate     string       `xml:"pubDate"`
	Duration    string       `xml:"itunes:duration,omitempty"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length int    `xml:"length,attr"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// RenderRSS writes an RSS 2.0 document with itunes durations.
func RenderRSS(ch Channel, entries []Entry) ([]byte, error) {
	doc := rssDoc{
		Version: "2.0",
		ITunes:  itunesNS,
		Channel: rssChannel{
			Title:       ch.Title,
			Link:        ch.Link,
			Description: ch.Description,
			Items:       make([]rssItem, 0, len(entries)),
		},
	}

	for _, e := range entries {
		item := rssItem{
			Title:     e.Title,
			Enclosure: rssEnclosure{URL: e.MediaURL, Type: "audio/mpeg"},
			GUID:      rssGUID{Value: e.GUID},
			PubDate:   e.PubDate,
			Duration:  FormatDuration(e.DurationSeconds),
		}
		if e.RabbiName != "" {
			item.Description = "Rabbi: " + e.RabbiName
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render rss: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// FormatDuration renders seconds as HH:MM:SS, or "" when unknown.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}
