package pipeline

import "testing"

func TestParseTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		want    *Route
		wantNil bool
	}{
		{name: "uploaded", topic: "courses/videos/abc123/uploaded", want: &Route{Event: "uploaded", VideoID: "abc123"}},
		{name: "transcribed", topic: "courses/videos/abc123/transcribed", want: &Route{Event: "transcribed", VideoID: "abc123"}},
		{name: "deep_prefix", topic: "org/lms/prod/videos/v-9/uploaded", want: &Route{Event: "uploaded", VideoID: "v-9"}},
		{name: "no_prefix", topic: "videos/v1/uploaded", want: &Route{Event: "uploaded", VideoID: "v1"}},

		{name: "empty_string", topic: "", wantNil: true},
		{name: "missing_video_id", topic: "courses/videos//uploaded", wantNil: true},
		{name: "wrong_collection", topic: "courses/lessons/v1/uploaded", wantNil: true},
		{name: "unknown_event", topic: "courses/videos/v1/deleted", wantNil: true},
		{name: "own_event_echo", topic: "courses/videos/v1/quiz_generated", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTopic(tt.topic)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("ParseTopic(%q) = %+v, want nil", tt.topic, got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseTopic(%q) = nil, want %+v", tt.topic, tt.want)
			}
			if *got != *tt.want {
				t.Errorf("ParseTopic(%q) = %+v, want %+v", tt.topic, got, tt.want)
			}
		})
	}
}

func TestSubscriptionTopics(t *testing.T) {
	got := SubscriptionTopics("courses/")
	want := []string{"courses/videos/+/uploaded", "courses/videos/+/transcribed"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("topic[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEventMessage_UploadOptions(t *testing.T) {
	f := false
	tests := []struct {
		name           string
		msg            EventMessage
		wantTranscript bool
		wantQuiz       bool
	}{
		{"defaults_to_everything", EventMessage{}, true, true},
		{"quiz_only", EventMessage{GenerateTranscript: &f}, false, true},
		{"transcript_only", EventMessage{GenerateQuiz: &f}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.msg.UploadOptions()
			if o.GenerateTranscript != tt.wantTranscript || o.GenerateQuiz != tt.wantQuiz {
				t.Errorf("UploadOptions() = %+v, want transcript=%v quiz=%v", o, tt.wantTranscript, tt.wantQuiz)
			}
		})
	}
}
