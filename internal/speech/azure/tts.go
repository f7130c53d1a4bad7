package azure

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rickgao/cognitive-hub/internal/session"
)

// Synthesize implements session.TTSProvider. The caller closes the returned
// audio stream.
func (c *Client) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ttsURL, strings.NewReader(c.ssml(text)))
	if err != nil {
		return nil, fmt.Errorf("create synthesis request: %w", err)
	}
	c.setCommonHeaders(req, token)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", c.cfg.OutputFormat)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &StatusError{Op: "synthesize", StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp.Body, nil
}

func (c *Client) ssml(text string) string {
	var escaped strings.Builder
	xml.EscapeText(&escaped, []byte(text))

	return fmt.Sprintf(
		`<speak version="1.0" xml:lang="%s"><voice xml:lang="%s" name="%s">%s</voice></speak>`,
		c.cfg.Language, c.cfg.Language, c.cfg.Voice, escaped.String(),
	)
}

var _ session.TTSProvider = (*Client)(nil)
