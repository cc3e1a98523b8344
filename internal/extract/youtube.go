package extract

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mindspool/recall/internal/domain"
	"github.com/mindspool/recall/internal/service"
)

// Accepted YouTube URL shapes, each capturing the 11-character video ID.
var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})(?:[?&]|$)`),
	regexp.MustCompile(`youtu\.be/([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`embed/([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`shorts/([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`^([0-9A-Za-z_-]{11})$`),
}

// ParseVideoID extracts the video ID from any accepted YouTube URL shape.
func ParseVideoID(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "missing YouTube URL")
	}
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(s); m != nil {
			return m[1], nil
		}
	}
	return "", domain.NewDomainError(domain.ErrCodeValidation, "not a recognizable YouTube URL")
}

// YouTubeExtractor fetches video titles and transcripts over HTTP.
type YouTubeExtractor struct {
	client  *http.Client
	baseURL string // overridable for tests
}

func NewYouTubeExtractor() *YouTubeExtractor {
	return &YouTubeExtractor{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: "https://www.youtube.com",
	}
}

// NewYouTubeExtractorWithClient creates an extractor against a custom
// endpoint. Used by tests.
func NewYouTubeExtractorWithClient(client *http.Client, baseURL string) *YouTubeExtractor {
	return &YouTubeExtractor{client: client, baseURL: baseURL}
}

// ExtractVideo resolves the video's title and English transcript.
func (e *YouTubeExtractor) ExtractVideo(ctx context.Context, rawURL string) (*service.ExtractedSource, error) {
	videoID, err := ParseVideoID(rawURL)
	if err != nil {
		return nil, err
	}

	title, err := e.fetchTitle(ctx, videoID)
	if err != nil {
		return nil, err
	}

	transcript, err := e.fetchTranscript(ctx, videoID)
	if err != nil {
		return nil, err
	}

	return &service.ExtractedSource{Title: title, Text: transcript}, nil
}

// fetchTitle uses the public oEmbed endpoint, which needs no API key.
func (e *YouTubeExtractor) fetchTitle(ctx context.Context, videoID string) (string, error) {
	u := fmt.Sprintf("%s/oembed?url=%s&format=json",
		e.baseURL, url.QueryEscape("https://www.youtube.com/watch?v="+videoID))

	body, err := e.get(ctx, u)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeIngestion,
			"failed to fetch video metadata", err)
	}

	var meta struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(body, &meta); err != nil || strings.TrimSpace(meta.Title) == "" {
		return "YouTube video " + videoID, nil
	}
	return meta.Title, nil
}

// timedtext is YouTube's caption endpoint; it serves XML with one <text>
// element per caption line.
type timedtextDoc struct {
	Texts []string `xml:"text"`
}

func (e *YouTubeExtractor) fetchTranscript(ctx context.Context, videoID string) (string, error) {
	u := fmt.Sprintf("%s/api/timedtext?lang=en&v=%s", e.baseURL, url.QueryEscape(videoID))

	body, err := e.get(ctx, u)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeIngestion,
			"failed to fetch video transcript", err)
	}
	if len(body) == 0 {
		return "", domain.NewDomainError(domain.ErrCodeIngestion,
			"video has no English captions")
	}

	var doc timedtextDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeIngestion,
			"failed to parse video transcript", err)
	}

	lines := make([]string, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		if cleaned := strings.TrimSpace(html.UnescapeString(t)); cleaned != "" {
			lines = append(lines, cleaned)
		}
	}
	if len(lines) == 0 {
		return "", domain.ErrSourceEmpty
	}

	return strings.Join(lines, " "), nil
}

func (e *YouTubeExtractor) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}
