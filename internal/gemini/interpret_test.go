package gemini

import (
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func candidateResponse(reason genai.FinishReason, parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: RoleModel, Parts: parts},
			FinishReason: reason,
		}},
	}
}

func TestInterpret_Complete(t *testing.T) {
	res, err := interpret(candidateResponse(genai.FinishReasonStop, genai.Text("hello "), genai.Text("world")))
	if err != nil {
		t.Fatalf("interpret() error: %v", err)
	}
	if res.FinishReason != FinishComplete {
		t.Errorf("FinishReason = %s, want COMPLETE", res.FinishReason)
	}
	if res.Text != "hello world" {
		t.Errorf("Text = %q, want parts joined", res.Text)
	}
}

func TestInterpret_Truncated(t *testing.T) {
	res, err := interpret(candidateResponse(genai.FinishReasonMaxTokens, genai.Text("partial")))
	if err != nil {
		t.Fatalf("interpret() error: %v", err)
	}
	if res.FinishReason != FinishTruncated {
		t.Errorf("FinishReason = %s, want TRUNCATED", res.FinishReason)
	}
	if res.Text != "partial" {
		t.Errorf("Text = %q, truncated output must keep partial text", res.Text)
	}
}

func TestInterpret_SafetyFiltered(t *testing.T) {
	res, err := interpret(candidateResponse(genai.FinishReasonSafety))
	if err != nil {
		t.Fatalf("filtered output is not an error, got: %v", err)
	}
	if res.FinishReason != FinishFiltered {
		t.Errorf("FinishReason = %s, want FILTERED", res.FinishReason)
	}
	if res.FilterReason == "" {
		t.Error("FilterReason should say why")
	}
	if res.Text != "" {
		t.Errorf("Text = %q, want empty", res.Text)
	}
}

func TestInterpret_PromptBlocked(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety},
	}
	res, err := interpret(resp)
	if err != nil {
		t.Fatalf("blocked prompt is not an error, got: %v", err)
	}
	if res.FinishReason != FinishFiltered || res.Text != "" {
		t.Errorf("result = %+v, want empty FILTERED", res)
	}
}

func TestInterpret_EmptyResponse(t *testing.T) {
	_, err := interpret(&genai.GenerateContentResponse{})
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if ae.Kind != KindServerError || !ae.Retryable() {
		t.Errorf("empty response should be a retryable server error, got %+v", ae)
	}
}

func TestInterpret_Usage(t *testing.T) {
	resp := candidateResponse(genai.FinishReasonStop, genai.Text("x"))
	resp.UsageMetadata = &genai.UsageMetadata{PromptTokenCount: 12, CandidatesTokenCount: 3}

	res, err := interpret(resp)
	if err != nil {
		t.Fatalf("interpret() error: %v", err)
	}
	if res.TokensIn != 12 || res.TokensOut != 3 {
		t.Errorf("tokens = %d/%d, want 12/3", res.TokensIn, res.TokensOut)
	}
}
