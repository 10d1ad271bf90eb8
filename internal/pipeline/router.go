package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Event topics, relative to the configured prefix:
//
//	{prefix}/videos/{video_id}/uploaded     → upload completed
//	{prefix}/videos/{video_id}/transcribed  → transcript completed elsewhere
const (
	routeUploaded    = "uploaded"
	routeTranscribed = "transcribed"
)

// Route is a parsed event topic.
type Route struct {
	Event   string // "uploaded" or "transcribed"
	VideoID string
}

// ParseTopic maps a topic to a Route using its trailing segments, so any
// prefix works. Returns nil for topics the pipeline does not handle.
func ParseTopic(topic string) *Route {
	parts := strings.Split(topic, "/")
	n := len(parts)
	if n < 3 || parts[n-3] != "videos" || parts[n-2] == "" {
		return nil
	}
	switch parts[n-1] {
	case routeUploaded, routeTranscribed:
		return &Route{Event: parts[n-1], VideoID: parts[n-2]}
	}
	return nil
}

// SubscriptionTopics returns the topic filters the router needs under prefix.
func SubscriptionTopics(prefix string) []string {
	prefix = strings.TrimSuffix(prefix, "/")
	return []string{
		prefix + "/videos/+/" + routeUploaded,
		prefix + "/videos/+/" + routeTranscribed,
	}
}

// EventMessage is the JSON body of an event. Flags default to true when
// omitted so a bare upload notification runs the whole pipeline.
type EventMessage struct {
	VideoID            string `json:"video_id"`
	GenerateTranscript *bool  `json:"generate_transcript"`
	GenerateQuiz       *bool  `json:"generate_quiz"`
	Priority           int    `json:"priority"`
	MediaRef           string `json:"media_ref"`
}

// UploadOptions converts the message flags.
func (m EventMessage) UploadOptions() UploadOptions {
	return UploadOptions{
		GenerateTranscript: m.GenerateTranscript == nil || *m.GenerateTranscript,
		GenerateQuiz:       m.GenerateQuiz == nil || *m.GenerateQuiz,
		Priority:           m.Priority,
		MediaRef:           m.MediaRef,
	}
}

// EventRouter turns broker messages into hook calls.
type EventRouter struct {
	hooks   *Hooks
	timeout time.Duration
	log     zerolog.Logger
}

// NewEventRouter creates a router dispatching to hooks.
func NewEventRouter(hooks *Hooks, log zerolog.Logger) *EventRouter {
	return &EventRouter{
		hooks:   hooks,
		timeout: 10 * time.Second,
		log:     log.With().Str("component", "router").Logger(),
	}
}

// HandleMessage is an mqttclient.MessageHandler. Malformed messages are
// logged and dropped.
func (r *EventRouter) HandleMessage(topic string, payload []byte) {
	route := ParseTopic(topic)
	if route == nil {
		r.log.Debug().Str("topic", topic).Msg("ignoring unrouted topic")
		return
	}

	var msg EventMessage
	if len(strings.TrimSpace(string(payload))) > 0 {
		if err := json.Unmarshal(payload, &msg); err != nil {
			r.log.Warn().Err(err).Str("topic", topic).Msg("invalid event payload")
			return
		}
	}
	videoID := route.VideoID
	if msg.VideoID != "" && msg.VideoID != videoID {
		r.log.Warn().
			Str("topic_video_id", videoID).
			Str("payload_video_id", msg.VideoID).
			Msg("video id mismatch between topic and payload, using topic")
	}

	switch route.Event {
	case routeUploaded:
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		res := r.hooks.OnVideoUploaded(ctx, videoID, msg.UploadOptions())
		r.log.Info().
			Str("video_id", videoID).
			Str("job_id", res.JobID).
			Bool("quiz_scheduled", res.QuizScheduled).
			Msg("upload event handled")
	case routeTranscribed:
		r.hooks.OnTranscriptCompleted(videoID)
	}
}
