// Package transcribe calls out to the transcription and diarization model
// services. Cobblepod treats both as black boxes reachable over HTTP; it
// has no opinion on what's behind TRANSCRIBE_URL/DIARIZE_URL beyond the
// request/response contract defined here.
package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Segment is one utterance in a transcript: a speaker turn with timing.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
	Text    string  `json:"text"`
}

// Client calls the transcription and diarization services over HTTP.
type Client struct {
	http          *resty.Client
	transcribeURL string
	diarizeURL    string
}

// New builds a Client pointed at the configured model service endpoints.
// Requests get a generous timeout since a single call may cover many
// minutes of audio on CPU-class hardware.
func New(transcribeURL, diarizeURL string) *Client {
	return &Client{
		http:          resty.New().SetTimeout(30 * time.Minute),
		transcribeURL: transcribeURL,
		diarizeURL:    diarizeURL,
	}
}

type transcribeRequest struct {
	Path     string   `json:"path"`
	Language string   `json:"language"`
	Hotwords []string `json:"hotwords,omitempty"`
}

type transcribeResponse struct {
	Segments []Segment `json:"segments"`
}

// Transcribe submits a normalized media file for speech-to-text. Hotwords
// bias recognition toward domain-specific terms the uploader supplied via
// their inbox's hotwords.txt.
func (c *Client) Transcribe(ctx context.Context, path, language string, hotwords []string) ([]Segment, error) {
	var result transcribeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(transcribeRequest{Path: path, Language: language, Hotwords: hotwords}).
		SetResult(&result).
		Post(c.transcribeURL)
	if err != nil {
		return nil, fmt.Errorf("transcribe request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("transcribe service returned %s: %s", resp.Status(), resp.String())
	}
	return result.Segments, nil
}

type diarizeRequest struct {
	Path string `json:"path"`
}

type diarizeTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

type diarizeResponse struct {
	Turns []diarizeTurn `json:"turns"`
}

// Diarize submits a normalized media file for speaker-turn detection and
// returns the turns in chronological order.
func (c *Client) Diarize(ctx context.Context, path string) ([]diarizeTurn, error) {
	var result diarizeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(diarizeRequest{Path: path}).
		SetResult(&result).
		Post(c.diarizeURL)
	if err != nil {
		return nil, fmt.Errorf("diarize request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("diarize service returned %s: %s", resp.Status(), resp.String())
	}
	return result.Turns, nil
}

// ApplySpeakers assigns a speaker label to each transcript segment by
// finding the diarization turn with the greatest time overlap, the same
// alignment strategy the reference implementation used to merge WhisperX
// and pyannote output.
func ApplySpeakers(segments []Segment, turns []diarizeTurn) []Segment {
	if len(turns) == 0 {
		return segments
	}
	for i := range segments {
		best := -1
		bestOverlap := 0.0
		for t, turn := range turns {
			overlap := overlapSeconds(segments[i].Start, segments[i].End, turn.Start, turn.End)
			if overlap > bestOverlap {
				bestOverlap = overlap
				best = t
			}
		}
		if best >= 0 {
			segments[i].Speaker = turns[best].Speaker
		}
	}
	return segments
}

func overlapSeconds(aStart, aEnd, bStart, bEnd float64) float64 {
	start := aStart
	if bStart > start {
		start = bStart
	}
	end := aEnd
	if bEnd < end {
		end = bEnd
	}
	if end <= start {
		return 0
	}
	return end - start
}
