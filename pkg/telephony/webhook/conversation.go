// Package webhook implements the Twilio callback endpoints that drive
// the engagement call's conversation after pkg/stages/communication
// places it, mirroring original_source's twilio_webhook Cloud Function.
package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/navigo-fleet/pipeline/pkg/models"
)

// Conversation stage names, matching the model's next_stage values.
const (
	StageGreeting    = "greeting"
	StageExplanation = "explanation"
	StageScheduling  = "scheduling"
	StageQuestions   = "questions"
	StageCompleted   = "completed"
)

// systemPrompt is the fixed persona/format instructions every turn's
// prompt is built on top of.
const systemPrompt = `You are a voice assistant for a vehicle maintenance service, calling a customer about their vehicle to explain an issue and help them schedule service.

Rules:
- Keep responses under 30 words - this is a voice call, not text.
- Use simple, clear, empathetic language, no technical jargon.
- Use natural Indian English ("We'll fix this for you", "No worries").

Conversation flow: greeting -> explanation -> scheduling or questions -> completed.

Return ONLY a JSON object: {"message": "<what to say>", "next_stage": "greeting|explanation|scheduling|questions|completed", "needs_input": true|false, "is_question": true|false}. No markdown, no code fences.`

// turn is the JSON shape the model is asked to return for every step of
// the call.
type turn struct {
	Message    string `json:"message"`
	NextStage  string `json:"next_stage"`
	NeedsInput bool   `json:"needs_input"`
	IsQuestion bool   `json:"is_question"`
}

var validStages = map[string]bool{
	StageGreeting: true, StageExplanation: true, StageScheduling: true,
	StageQuestions: true, StageCompleted: true,
}

func parseTurn(raw string) (turn, error) {
	var t turn
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return turn{}, fmt.Errorf("parse conversation turn: %w", err)
	}
	if t.Message == "" {
		t.Message = "Thank you for your time."
	}
	if !validStages[t.NextStage] {
		t.NextStage = StageCompleted
	}
	return t, nil
}

// greetingPrompt builds the prompt for the call's opening line.
func greetingPrompt(customerName, vehicleID, issueSummary string) string {
	return fmt.Sprintf(
		"%s\n\nGenerate the opening greeting for this call.\nCustomer name: %s\nVehicle ID: %s\nIssue: %s\n\nSet next_stage=%q.",
		systemPrompt, customerName, vehicleID, issueSummary, StageExplanation,
	)
}

// turnPrompt builds the prompt for every subsequent gather response,
// given the last few transcript turns and the caller's latest input.
func turnPrompt(currentStage string, history []models.TranscriptTurn, userInput, vehicleID, issueSummary, recommendedAction string) string {
	var b strings.Builder
	const maxHistory = 5
	start := 0
	if len(history) > maxHistory {
		start = len(history) - maxHistory
	}
	for _, h := range history[start:] {
		fmt.Fprintf(&b, "%s: %s\n", h.Speaker, h.Text)
	}

	return fmt.Sprintf(
		"%s\n\nCurrent stage: %s\nConversation so far:\n%s\nCustomer just said: %q\n\n"+
			"Vehicle ID: %s\nIssue: %s\nRecommended action: %s\n\n"+
			"If the customer agrees to schedule, set next_stage=%q. "+
			"If they ask a question, set next_stage=%q. If they decline or the matter is settled, set next_stage=%q.",
		systemPrompt, currentStage, b.String(), userInput,
		vehicleID, issueSummary, recommendedAction,
		StageScheduling, StageQuestions, StageCompleted,
	)
}

// deriveOutcome infers the call's outcome from the customer's latest
// words and the stage the model just transitioned to, mirroring
// original_source's keyword heuristic (the model sets next_stage, but
// the yes/no the customer actually spoke decides confirmed/declined).
func deriveOutcome(nextStage, userInput string) string {
	lower := strings.ToLower(userInput)
	switch {
	case nextStage == StageScheduling && strings.Contains(lower, "yes"):
		return "confirmed"
	case strings.Contains(lower, "no"):
		return "declined"
	default:
		return ""
	}
}
