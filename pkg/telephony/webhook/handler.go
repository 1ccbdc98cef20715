package webhook

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/twiml"

	"github.com/navigo-fleet/pipeline/pkg/bus"
	"github.com/navigo-fleet/pipeline/pkg/llmclient"
	"github.com/navigo-fleet/pipeline/pkg/models"
	"github.com/navigo-fleet/pipeline/pkg/stageworker"
	"github.com/navigo-fleet/pipeline/pkg/store"
)

// Handler serves Twilio's voice/gather/status callbacks for an
// in-progress engagement call.
type Handler struct {
	store *store.Store
	llm   llmclient.Client
	pub   *bus.Publisher
	log   *slog.Logger
}

// NewHandler builds a Handler.
func NewHandler(st *store.Store, llm llmclient.Client, pub *bus.Publisher) *Handler {
	return &Handler{store: st, llm: llm, pub: pub, log: slog.Default().With("component", "telephony-webhook")}
}

// Register mounts the three Twilio callback routes under group (e.g.
// r.Group("/twilio")).
func (h *Handler) Register(group gin.IRouter) {
	group.POST("/voice", h.handleVoice)
	group.POST("/gather", h.handleGather)
	group.POST("/status", h.handleStatus)
}

// handleVoice answers the initial call leg with the opening greeting.
func (h *Handler) handleVoice(c *gin.Context) {
	ctx := c.Request.Context()
	callSID := c.PostForm("CallSid")
	if callSID == "" {
		writeError(c, "missing CallSid")
		return
	}

	cc, err := h.store.GetCallContext(ctx, callSID)
	if err != nil {
		h.log.Warn("call context not found", "call_sid", callSID, "error", err)
		writeError(c, "call context not found")
		return
	}

	eng, rca, err := h.fetchEngagementContext(ctx, cc.EngagementID)
	if err != nil {
		h.log.Warn("engagement context not found", "engagement_id", cc.EngagementID, "error", err)
		writeError(c, "engagement context not found")
		return
	}

	raw, err := h.llm.Complete(ctx, greetingPrompt(eng.CustomerName, cc.VehicleID, rca.RootCause))
	if err != nil {
		h.log.Error("model call failed", "error", err)
		writeError(c, "assistant unavailable")
		return
	}
	tn, err := parseTurn(stageworker.ExtractJSON(raw))
	if err != nil {
		h.log.Error("parse turn failed", "error", err)
		writeError(c, "assistant unavailable")
		return
	}

	comm, err := h.store.GetCommunicationCaseByCallSID(ctx, callSID)
	if err != nil {
		h.log.Warn("communication case not found", "call_sid", callSID, "error", err)
		writeError(c, "communication case not found")
		return
	}
	comm.ConversationStage = StageGreeting
	comm.ConversationTranscript = append(comm.ConversationTranscript, models.TranscriptTurn{Speaker: "agent", Text: tn.Message})
	comm.UpdatedAt = time.Now()
	if err := h.store.UpdateCommunicationCase(ctx, comm); err != nil {
		h.log.Error("update communication case failed", "error", err)
	}

	writeXML(c, sayAndGather(tn.Message, "Do you have a moment to discuss an important matter about your vehicle?"))
}

// handleGather consumes the customer's spoken or DTMF response and
// drives the conversation to its next stage.
func (h *Handler) handleGather(c *gin.Context) {
	ctx := c.Request.Context()
	callSID := c.PostForm("CallSid")
	if callSID == "" {
		writeError(c, "missing CallSid")
		return
	}
	userInput := c.PostForm("SpeechResult")
	if userInput == "" {
		userInput = c.PostForm("Digits")
	}

	cc, err := h.store.GetCallContext(ctx, callSID)
	if err != nil {
		writeError(c, "call context not found")
		return
	}
	comm, err := h.store.GetCommunicationCaseByCallSID(ctx, callSID)
	if err != nil {
		writeError(c, "communication case not found")
		return
	}
	eng, rca, err := h.fetchEngagementContext(ctx, cc.EngagementID)
	if err != nil {
		writeError(c, "engagement context not found")
		return
	}

	comm.ConversationTranscript = append(comm.ConversationTranscript, models.TranscriptTurn{Speaker: "customer", Text: userInput})

	raw, err := h.llm.Complete(ctx, turnPrompt(comm.ConversationStage, comm.ConversationTranscript, userInput, cc.VehicleID, rca.RootCause, rca.RecommendedAction))
	if err != nil {
		h.log.Error("model call failed", "error", err)
		writeError(c, "assistant unavailable")
		return
	}
	tn, err := parseTurn(stageworker.ExtractJSON(raw))
	if err != nil {
		h.log.Error("parse turn failed", "error", err)
		writeError(c, "assistant unavailable")
		return
	}

	comm.ConversationTranscript = append(comm.ConversationTranscript, models.TranscriptTurn{Speaker: "agent", Text: tn.Message})
	comm.ConversationStage = tn.NextStage

	outcome := deriveOutcome(tn.NextStage, userInput)
	if outcome != "" {
		comm.Outcome = &outcome
	}
	if outcome == "confirmed" && eng.BookingID != nil {
		comm.BookingID = eng.BookingID
	}
	comm.UpdatedAt = time.Now()
	if err := h.store.UpdateCommunicationCase(ctx, comm); err != nil {
		h.log.Error("update communication case failed", "error", err)
	}

	if tn.NextStage == StageCompleted {
		h.publishComplete(ctx, comm, cc)
		writeXML(c, sayAndHangup(tn.Message))
		return
	}

	prompt := "How can I help you further?"
	if tn.NextStage == StageScheduling {
		prompt = "Would you like to confirm this appointment?"
	}
	writeXML(c, sayAndGather(tn.Message, prompt))
}

// handleStatus records Twilio's call-state callbacks. Twilio expects a
// 200 regardless of outcome, so failures are logged, never surfaced.
func (h *Handler) handleStatus(c *gin.Context) {
	ctx := c.Request.Context()
	callSID := c.PostForm("CallSid")
	callStatus := c.PostForm("CallStatus")
	if callSID == "" {
		c.String(http.StatusOK, "OK")
		return
	}

	comm, err := h.store.GetCommunicationCaseByCallSID(ctx, callSID)
	if err != nil {
		h.log.Warn("status callback for unknown call", "call_sid", callSID, "status", callStatus)
		c.String(http.StatusOK, "OK")
		return
	}
	comm.CallStatus = callStatus
	comm.UpdatedAt = time.Now()
	if err := h.store.UpdateCommunicationCase(ctx, comm); err != nil {
		h.log.Error("update call status failed", "error", err)
	}
	c.String(http.StatusOK, "OK")
}

func (h *Handler) fetchEngagementContext(ctx context.Context, engagementID string) (models.EngagementCase, models.RCACase, error) {
	eng, err := h.store.GetEngagementCase(ctx, engagementID)
	if err != nil {
		return models.EngagementCase{}, models.RCACase{}, err
	}
	rca, err := h.store.GetRCACase(ctx, eng.RCAID)
	if err != nil {
		return eng, models.RCACase{}, err
	}
	return eng, rca, nil
}

func (h *Handler) publishComplete(ctx context.Context, comm models.CommunicationCase, cc models.CallContext) {
	payload := models.CommunicationCompletePayload{
		CommunicationID: comm.CommunicationID,
		EngagementID:    comm.EngagementID,
		CaseID:          comm.CaseID,
		VehicleID:       comm.VehicleID,
		BookingID:       comm.BookingID,
	}
	if comm.Outcome != nil {
		payload.Outcome = *comm.Outcome
	} else {
		payload.Outcome = "no_response"
	}
	if err := h.pub.Publish(ctx, models.TopicCommunicationComplete, payload); err != nil {
		h.log.Error("publish communication-complete failed", "error", err)
	}
}

func sayAndGather(message, prompt string) string {
	gather := &twiml.VoiceGather{
		Input:         "speech dtmf",
		Timeout:       "5",
		NumDigits:     "1",
		Action:        "/twilio/gather",
		Method:        "POST",
		SpeechTimeout: "auto",
	}
	say := &twiml.VoiceSay{Message: message, Voice: "Polly.Aditi", Language: "en-IN"}
	gatherSay := &twiml.VoiceSay{Message: prompt, Voice: "Polly.Aditi", Language: "en-IN"}
	gather.InnerElements = []twiml.Element{gatherSay}

	doc, err := twiml.Voice([]twiml.Element{say, gather})
	if err != nil {
		return fallbackTwiML(message)
	}
	return doc
}

func sayAndHangup(message string) string {
	say := &twiml.VoiceSay{Message: message, Voice: "Polly.Aditi", Language: "en-IN"}
	hangup := &twiml.VoiceHangup{}
	doc, err := twiml.Voice([]twiml.Element{say, hangup})
	if err != nil {
		return fallbackTwiML(message)
	}
	return doc
}

func fallbackTwiML(message string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><Response><Say>` + message + `</Say><Hangup/></Response>`
}

func writeXML(c *gin.Context, doc string) {
	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(doc))
}

func writeError(c *gin.Context, _ string) {
	writeXML(c, sayAndHangup("We're sorry, we encountered a technical issue. Please contact our support team. Goodbye."))
}
