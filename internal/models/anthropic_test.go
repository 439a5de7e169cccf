package models

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAnthropicClient_StreamsTextDeltas(t *testing.T) {
	var gotReq anthropicRequest
	var gotKey, gotVersion string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		json.NewDecoder(r.Body).Decode(&gotReq)

		events := []string{
			"event: message_start\ndata: {\"type\":\"message_start\"}\n\n",
			"event: content_block_start\ndata: {\"type\":\"content_block_start\"}\n\n",
			"event: ping\ndata: {\"type\":\"ping\"}\n\n",
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Bon\"}}\n\n",
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"jour\"}}\n\n",
			"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n",
		}
		for _, ev := range events {
			fmt.Fprint(w, ev)
		}
	}))
	defer server.Close()

	client := NewAnthropic("anthropic", server.URL, "ak-test", "claude-default", time.Second)
	stream, err := client.Stream(context.Background(), &Spec{Provider: "anthropic"}, []Message{
		{Role: RoleSystem, Content: "translate"},
		{Role: RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	chunks, err := drain(t, stream)
	if err != nil {
		t.Fatalf("Recv() error: %v", err)
	}
	if strings.Join(chunks, "") != "Bonjour" {
		t.Errorf("got %q, want Bonjour", strings.Join(chunks, ""))
	}
	if gotReq.System != "translate" {
		t.Errorf("system = %q, want translate", gotReq.System)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != RoleUser {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
	if gotReq.Model != "claude-default" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if gotKey != "ak-test" || gotVersion != anthropicVersion {
		t.Errorf("headers: key=%q version=%q", gotKey, gotVersion)
	}
}

func TestDecodeAnthropic_Error(t *testing.T) {
	_, done, err := decodeAnthropic("error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	if err == nil || !done {
		t.Fatalf("expected terminal error, got done=%v err=%v", done, err)
	}
	if !strings.Contains(err.Error(), "Overloaded") {
		t.Errorf("error = %q", err.Error())
	}
}
