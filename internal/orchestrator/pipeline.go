package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/voiceline-ai/internal/agents"
	"github.com/wolfman30/voiceline-ai/internal/audio"
	"github.com/wolfman30/voiceline-ai/internal/booking"
	"github.com/wolfman30/voiceline-ai/internal/call"
	"github.com/wolfman30/voiceline-ai/internal/llm"
	"github.com/wolfman30/voiceline-ai/internal/retrieval"
	"github.com/wolfman30/voiceline-ai/internal/routing"
	"github.com/wolfman30/voiceline-ai/internal/stt"
	"github.com/wolfman30/voiceline-ai/internal/telephony"
	"github.com/wolfman30/voiceline-ai/internal/tts"
	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

const (
	hearingTroubleLine = "I'm sorry, I'm having trouble hearing you. Could you say that again?"
	connectionLine     = "I'm sorry, I'm having trouble with our connection right now."
)

// Pipeline is the per-call processing chain. The telephony leg pushes raw
// mu-law audio in; synthesized speech and clear commands flow back out over
// the stream. Ingestion never blocks on turn processing.
type Pipeline struct {
	o      *Orchestrator
	sess   *call.Session
	stream telephony.Stream
	logger *logging.Logger

	master *agents.Agent
	roster []routing.Candidate
	byID   map[string]*agents.Agent

	buffer  *audio.Buffer
	vad     *audio.Detector
	sttSess *stt.Session
	ttsSess *tts.Session

	utterances chan string

	ctx    context.Context
	cancel context.CancelFunc
}

func (o *Orchestrator) newPipeline(sess *call.Session, stream telephony.Stream) (*Pipeline, error) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		o:          o,
		sess:       sess,
		stream:     stream,
		logger:     o.logger.WithCall(sess.ID),
		buffer:     audio.NewBuffer(o.cfg.SampleRate, 1), // mu-law, one byte per sample
		vad:        audio.NewDetector(o.cfg.VADEnergyThreshold, o.cfg.VADDebounceFrames),
		byID:       make(map[string]*agents.Agent),
		utterances: make(chan string, 4),
		ctx:        ctx,
		cancel:     cancel,
	}

	p.loadAgents(ctx)

	p.ttsSess = tts.NewSession(ctx, o.deps.TTS, p.logger)
	p.sttSess = stt.NewSession(o.deps.STT, stt.Config{
		SilenceGap:     o.cfg.SilenceGap,
		ConnectTimeout: o.cfg.STTConnectTimeout,
	}, p.logger, p.enqueueUtterance, nil, p.onSTTTrouble)

	if err := p.sttSess.Connect(ctx); err != nil {
		o.deps.Metrics.ObserveProviderError("stt")
		p.ttsSess.Close()
		cancel()
		return nil, err
	}

	// Provider sessions are owned by this call and must be closed on call
	// end, not left to the garbage collector.
	sess.OnEnd(func() { _ = p.sttSess.Close() })
	sess.OnEnd(p.ttsSess.Close)
	sess.OnEnd(cancel)
	return p, nil
}

// loadAgents fetches the master agent and roster. Lookup failure degrades to
// a built-in receptionist rather than refusing the call.
func (p *Pipeline) loadAgents(ctx context.Context) {
	master, err := p.o.deps.Agents.MasterByCompany(ctx, p.sess.CompanyID)
	if err != nil {
		p.logger.Warn("orchestrator: master agent lookup failed, using default",
			"company_id", p.sess.CompanyID, "error", err)
		master = &agents.Agent{
			Name:          "Assistant",
			PersonaPrompt: "You are a friendly, concise phone assistant.",
			Greeting:      "Hi, thanks for calling! How can I help you today?",
		}
	}
	p.master = master

	roster, err := p.o.deps.Agents.RosterByCompany(ctx, p.sess.CompanyID)
	if err != nil {
		p.logger.Warn("orchestrator: roster lookup failed, routing disabled",
			"company_id", p.sess.CompanyID, "error", err)
		return
	}
	for i := range roster {
		a := roster[i]
		p.byID[a.ID] = &a
		p.roster = append(p.roster, routing.Candidate{ID: a.ID, Name: a.Name, Description: a.Description})
	}
}

// activeAgent resolves whose persona speaks this turn. An empty or unknown
// agent ID means the master agent keeps the call.
func (p *Pipeline) activeAgent(agentID string) *agents.Agent {
	if a, ok := p.byID[agentID]; ok {
		return a
	}
	return p.master
}

// start launches the frame loop, turn loop, and outbound audio pump, then
// speaks the greeting.
func (p *Pipeline) start() {
	go p.frameLoop()
	go p.turnLoop()
	go p.audioPump()

	if p.master.Greeting != "" {
		p.speak(p.master.Greeting)
	}
}

// PushAudio ingests one mu-law chunk from the telephony leg. It only appends
// to the buffer, so it can never block on turn processing.
func (p *Pipeline) PushAudio(chunk []byte, ts time.Time) {
	p.buffer.AddChunk(chunk, ts)
}

// CallEnded tears the pipeline down. Implements telephony.AudioSink.
func (p *Pipeline) CallEnded() {
	p.o.endCall(p.sess.ID)
}

func (p *Pipeline) frameLoop() {
	interval := time.Duration(p.o.cfg.FrameDurationMS) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case now := <-ticker.C:
			p.tick(now)
		}
	}
}

// tick drains complete frames from the buffer. While the agent is speaking,
// caller audio is still buffered and classified but never forwarded to STT
// (half-duplex); sustained caller speech during agent speech is a barge-in.
func (p *Pipeline) tick(now time.Time) {
	for {
		frame, ok := p.buffer.Frame(p.o.cfg.FrameDurationMS)
		if !ok {
			break
		}
		speech := p.vad.Process(audio.DecodeMuLaw(frame))

		if p.ttsSess.Speaking() {
			if speech {
				p.bargeIn()
			}
			continue
		}

		if err := p.sttSess.Send(p.ctx, frame); err != nil {
			if errors.Is(err, stt.ErrSessionClosed) {
				return
			}
			p.o.deps.Metrics.ObserveProviderError("stt")
		}
	}
	p.sttSess.TickSilence(now)
}

// bargeIn stops agent speech: pending synthesis is flushed and the provider
// is told to clear its playback buffer so nothing already sent gets replayed.
func (p *Pipeline) bargeIn() {
	p.ttsSess.Interrupt()
	if err := p.stream.Clear(); err != nil {
		p.logger.Warn("orchestrator: clear command failed", "error", err)
	}
	p.o.deps.Metrics.ObserveInterruption()
	p.logger.Info("orchestrator: caller barge-in")
}

// audioPump forwards synthesized chunks to the telephony leg. Backpressure
// propagates naturally: a slow socket stalls this loop, which stalls the
// synthesis worker.
func (p *Pipeline) audioPump() {
	for chunk := range p.ttsSess.Chunks() {
		if err := p.stream.SendAudio(chunk); err != nil {
			p.logger.Warn("orchestrator: outbound audio failed", "error", err)
			return
		}
	}
}

// enqueueUtterance hands a finalized utterance to the turn loop without
// blocking the STT callback. A full queue drops the utterance; the caller
// will repeat themselves long before four turns back up.
func (p *Pipeline) enqueueUtterance(text string) {
	select {
	case p.utterances <- text:
	default:
		p.logger.Warn("orchestrator: utterance queue full, dropping")
	}
}

func (p *Pipeline) onSTTTrouble() {
	p.speak(hearingTroubleLine)
}

func (p *Pipeline) turnLoop() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case utterance := <-p.utterances:
			p.processTurn(utterance)
		}
	}
}

// processTurn runs one full turn: route, decide, retrieve under budget,
// generate, and commit. Commits go through the session's queue so history
// lands in completion order.
func (p *Pipeline) processTurn(utterance string) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(p.ctx, p.o.cfg.TurnBudget)
	defer cancel()

	ctx, span := p.o.tracer.Start(ctx, "orchestrator.turn", trace.WithAttributes(
		attribute.String("voiceline.call_id", p.sess.ID),
	))
	defer span.End()

	agentID := p.o.deps.Router.Route(ctx, utterance, p.sess.Routing().ActiveAgentID, p.roster)
	p.sess.SetActiveAgent(agentID)

	history := p.sess.HistoryMessages()
	decision := p.o.deps.Decider.Decide(ctx, utterance, history)
	span.SetAttributes(attribute.String("voiceline.strategy", string(decision.Strategy)))

	contextBlock := ""
	if decision.NeedsDocuments {
		snippets, err := p.o.deps.Retriever.Retrieve(ctx, p.sess.CompanyID, agentID, utterance)
		switch {
		case err == nil:
			contextBlock = p.o.deps.Retriever.AssembleContext(snippets)
		case errors.Is(err, retrieval.ErrTimeout):
			p.o.deps.Metrics.ObserveRetrievalTimeout()
		default:
			p.o.deps.Metrics.ObserveProviderError("retrieval")
			p.logger.Warn("orchestrator: retrieval failed", "error", err)
		}
	}

	response, status := p.respond(ctx, utterance, agentID, history, contextBlock, decision)
	p.commitTurn(utterance, response, agentID, string(decision.Strategy), start)
	p.o.deps.Metrics.ObserveTurn(string(decision.Strategy), status, time.Since(start).Seconds())
}

// respond produces and speaks the reply, returning the spoken text and a
// status label for metrics.
func (p *Pipeline) respond(ctx context.Context, utterance, agentID string, history []llm.ChatMessage, contextBlock string, decision retrieval.Decision) (string, string) {
	if decision.Strategy == retrieval.StrategyDirectCanned {
		line := cannedReply(utterance)
		p.speak(line)
		return line, "ok"
	}

	req := llm.Request{
		Model:    p.o.cfg.Model,
		System:   p.systemPrompt(agentID, contextBlock),
		Messages: append(append([]llm.ChatMessage{}, history...), llm.ChatMessage{Role: llm.ChatRoleUser, Content: utterance}),
		Tools:    p.o.cfg.Tools,
	}

	stream, err := p.o.deps.LLM.CompleteStream(ctx, req)
	if err != nil {
		return p.degrade(err), "degraded"
	}

	var text strings.Builder
	var toolCalls []llm.ToolCall
	for chunk := range stream {
		if chunk.Error != nil {
			if text.Len() == 0 && len(toolCalls) == 0 {
				return p.degrade(chunk.Error), "degraded"
			}
			p.logger.Warn("orchestrator: response stream broke mid-turn", "error", chunk.Error)
			break
		}
		if chunk.Text != "" {
			// First token starts speaking immediately; no full-buffering.
			text.WriteString(chunk.Text)
			if err := p.ttsSess.AddText(chunk.Text); err != nil {
				break
			}
		}
		if len(chunk.ToolCalls) > 0 {
			toolCalls = append(toolCalls, chunk.ToolCalls...)
		}
	}

	response := strings.TrimSpace(text.String())

	// Tool results are spoken directly as the turn's response; tool outputs
	// are already conversational.
	for _, tc := range toolCalls {
		result := p.o.deps.Executor.Execute(ctx, tc, p.sess)
		if err := p.ttsSess.AddText(result); err == nil {
			if response != "" {
				response += " "
			}
			response += result
		}
	}

	if err := p.ttsSess.Flush(); err != nil && !errors.Is(err, tts.ErrSessionClosed) {
		p.logger.Warn("orchestrator: tts flush failed", "error", err)
	}
	if response == "" {
		return p.degrade(errors.New("empty response")), "degraded"
	}
	return response, "ok"
}

// degrade speaks an in-character fallback. The caller never hears silence or
// a technical error.
func (p *Pipeline) degrade(err error) string {
	p.o.deps.Metrics.ObserveProviderError("llm")
	p.logger.Error("orchestrator: response generation failed", "error", err)

	line := connectionLine
	if len(p.master.Fallbacks) > 0 {
		line = p.master.Fallbacks[p.sess.Routing().InteractionCount%len(p.master.Fallbacks)]
	}
	p.speak(line)
	return line
}

func (p *Pipeline) speak(line string) {
	if err := p.ttsSess.AddText(line); err != nil {
		return
	}
	if err := p.ttsSess.Flush(); err != nil && !errors.Is(err, tts.ErrSessionClosed) {
		p.logger.Warn("orchestrator: tts flush failed", "error", err)
	}
}

func (p *Pipeline) commitTurn(utterance, response, agentID, strategy string, start time.Time) {
	turn := call.ConversationTurn{
		Utterance:   utterance,
		Response:    response,
		AgentID:     agentID,
		Strategy:    strategy,
		StartedAt:   start,
		CompletedAt: time.Now().UTC(),
	}
	if err := p.sess.AppendTurn(turn); err != nil {
		return
	}
	if p.o.deps.Store == nil {
		return
	}
	callID := p.sess.ID
	_ = p.sess.Commit(func() {
		ctx := context.Background()
		if err := p.o.deps.Store.RecordTurn(ctx, callID); err != nil {
			p.logger.Warn("orchestrator: turn mirror failed", "error", err)
			return
		}
		now := time.Now().UTC()
		_ = p.o.deps.Store.AppendTranscript(ctx, callID, call.TranscriptEntry{Role: "user", Text: utterance, Timestamp: now})
		_ = p.o.deps.Store.AppendTranscript(ctx, callID, call.TranscriptEntry{Role: "assistant", Text: response, Timestamp: now})
	})
}

// systemPrompt builds the system blocks for a turn: the active agent's
// persona, the live-call instruction, any retrieved context, and the booking
// flow's next-step hint when a booking is in progress.
func (p *Pipeline) systemPrompt(agentID, contextBlock string) []string {
	persona := strings.TrimSpace(p.activeAgent(agentID).PersonaPrompt)
	if persona == "" {
		persona = "You are a friendly, concise phone assistant."
	}
	system := []string{persona + "\n\nYou are speaking on a live phone call. Keep replies short and natural; they are read aloud."}
	if contextBlock != "" {
		system = append(system, contextBlock)
	}
	if p.sess.HasBooking() {
		if hint := booking.NextAction(p.sess.Booking()).PromptHint; hint != "" {
			system = append(system, "Booking in progress. Next step: "+hint)
		}
	}
	return system
}

// cannedReply answers pure pleasantries without a model call.
func cannedReply(utterance string) string {
	switch normalize(utterance) {
	case "thanks", "thank you", "thank you so much":
		return "You're very welcome!"
	case "bye", "goodbye", "bye bye":
		return "Thanks for calling, goodbye!"
	case "okay", "ok", "alright", "sounds good":
		return "Great!"
	case "hello", "hi", "hey":
		return "Hello! How can I help you?"
	default:
		return "Okay!"
	}
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, ".!?,")
}
