package hook

import (
	"bufio"
	"encoding/json"
	"os"
)

// TranscriptMeta is the token/model metadata recoverable from the Claude
// Code conversation transcript for one tool call.
type TranscriptMeta struct {
	Model            string
	InputTokens      uint64
	OutputTokens     uint64
	CacheReadTokens  uint64
	CacheWriteTokens uint64
	StopReason       string
	ServiceTier      string
	DurationUS       uint64
}

type transcriptLine struct {
	Type    string `json:"type"`
	Message struct {
		Model   string `json:"model"`
		Content []struct {
			Type string `json:"type"`
			ID   string `json:"id"`
		} `json:"content"`
		Usage struct {
			InputTokens              uint64 `json:"input_tokens"`
			OutputTokens             uint64 `json:"output_tokens"`
			CacheReadInputTokens     uint64 `json:"cache_read_input_tokens"`
			CacheCreationInputTokens uint64 `json:"cache_creation_input_tokens"`
			ServiceTier              string `json:"service_tier"`
		} `json:"usage"`
		StopReason string `json:"stop_reason"`
	} `json:"message"`
}

// readTranscriptMeta scans the transcript JSONL for the assistant turn that
// issued toolUseID, falling back to the last assistant turn. Missing or
// malformed transcripts yield an empty meta — enrichment is best-effort.
func readTranscriptMeta(path, toolUseID string) TranscriptMeta {
	if path == "" {
		return TranscriptMeta{}
	}
	f, err := os.Open(path)
	if err != nil {
		return TranscriptMeta{}
	}
	defer f.Close()

	var last, matched TranscriptMeta
	var haveMatch bool

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var tl transcriptLine
		if err := json.Unmarshal(sc.Bytes(), &tl); err != nil {
			continue
		}
		if tl.Type != "assistant" || tl.Message.Model == "" {
			continue
		}
		meta := TranscriptMeta{
			Model:            tl.Message.Model,
			InputTokens:      tl.Message.Usage.InputTokens,
			OutputTokens:     tl.Message.Usage.OutputTokens,
			CacheReadTokens:  tl.Message.Usage.CacheReadInputTokens,
			CacheWriteTokens: tl.Message.Usage.CacheCreationInputTokens,
			StopReason:       tl.Message.StopReason,
			ServiceTier:      tl.Message.Usage.ServiceTier,
		}
		last = meta
		if toolUseID != "" {
			for _, c := range tl.Message.Content {
				if c.Type == "tool_use" && c.ID == toolUseID {
					matched = meta
					haveMatch = true
				}
			}
		}
	}
	if haveMatch {
		return matched
	}
	return last
}
