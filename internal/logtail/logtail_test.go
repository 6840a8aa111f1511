package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestRead(t *testing.T) {
	// Create a temporary log file
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	// Write 10 lines of content
	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "nothing requested (0)",
			maxLines: 0,
			expected: nil,
		},
		{
			name:     "nothing requested (negative)",
			maxLines: -1,
			expected: nil,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	got, err := Read(filepath.Join(t.TempDir(), "absent.log"), 10)
	if err != nil || got != nil {
		t.Fatalf("Read() = %v, %v; want nil, nil", got, err)
	}
}

func TestParse(t *testing.T) {
	ts := time.Date(2026, 10, 16, 21, 1, 5, 0, time.UTC)
	clock := ts.In(time.Local).Format(time.TimeOnly)

	tests := []struct {
		name     string
		input    string
		level    string
		expected string
	}{
		{
			name:     "plain text",
			input:    "    helper output line",
			expected: "    helper output line",
		},
		{
			name:     "broken json",
			input:    `{"level":"info"`,
			expected: `{"level":"info"`,
		},
		{
			name:     "info with component and fields",
			input:    `{"level":"info","service":"skiff","component":"stream","time":"2026-10-16T21:01:05Z","pid":42,"name":"torrent2http","message":"started"}`,
			level:    "INFO",
			expected: clock + " INFO [stream] started name=torrent2http pid=42",
		},
		{
			name:     "warn with quoted error",
			input:    `{"level":"warn","time":"2026-10-16T21:01:05Z","error":"buffer timeout","message":"buffering failed"}`,
			level:    "WARN",
			expected: clock + ` WARN buffering failed error="buffer timeout"`,
		},
		{
			name:     "nested value",
			input:    `{"level":"debug","message":"args","argv":["-bind","127.0.0.1:5001"]}`,
			level:    "DEBUG",
			expected: `DEBUG args argv=["-bind","127.0.0.1:5001"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := Parse(tt.input)
			if entry.Level != tt.level {
				t.Errorf("Level = %q, want %q", entry.Level, tt.level)
			}
			if got := entry.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestReadEntries(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "skiff.log")
	body := `{"level":"info","component":"gateway","message":"ready"}
not json
{"level":"error","component":"player","message":"exited","code":2}
`
	if err := os.WriteFile(logPath, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := ReadEntries(logPath, 2)
	if err != nil {
		t.Fatalf("ReadEntries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Message != "not json" || entries[0].Level != "" {
		t.Errorf("entries[0] = %+v, want passthrough line", entries[0])
	}
	if entries[1].Component != "player" || entries[1].Level != "ERROR" {
		t.Errorf("entries[1] = %+v, want player error", entries[1])
	}
	if !reflect.DeepEqual(entries[1].Fields, []Field{{Key: "code", Value: "2"}}) {
		t.Errorf("Fields = %+v, want code=2", entries[1].Fields)
	}
}
