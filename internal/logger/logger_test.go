package logger

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs(t *testing.T) {
	tests := []struct {
		name string
		in   []interface{}
		want []interface{}
	}{
		{"empty", nil, nil},
		{"plain", []interface{}{"attempt", 2, "reason", "closing_line"}, []interface{}{"attempt", 2, "reason", "closing_line"}},
		{"api key", []interface{}{"openai_api_key", "sk-123"}, []interface{}{"openai_api_key", redacted}},
		{"mixed case", []interface{}{"Authorization", "Bearer x"}, []interface{}{"Authorization", redacted}},
		{"database url", []interface{}{"database_url", "postgres://u:p@h/db"}, []interface{}{"database_url", redacted}},
		{"dangling key", []interface{}{"session_id", "abc", "orphan"}, []interface{}{"session_id", "abc", "orphan"}},
	}
	for _, tc := range tests {
		if got := sanitizeKVs(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestWithRedactsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}
	l.With("token", "t0p").Info("generated", "attempts", 1)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["token"] != redacted {
		t.Errorf("token = %v", fields["token"])
	}
	if fields["attempts"] != int64(1) {
		t.Errorf("attempts = %#v", fields["attempts"])
	}
}
