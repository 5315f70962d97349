package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"discharge-assistant/internal/directory"
	"discharge-assistant/internal/metrics"
	"discharge-assistant/pkg"
)

// ErrNilSession is returned when HandleTurn is called without a session.
var ErrNilSession = errors.New("nil session")

// PatientLookup finds a discharge record by name.
type PatientLookup interface {
	Lookup(ctx context.Context, nameQuery string) (pkg.PatientRecord, error)
}

// Orchestrator routes each user turn to the patient directory or to the
// clinical question path and appends exactly one assistant reply.
type Orchestrator struct {
	Classifier Classifier
	Patients   PatientLookup
	Gatherer   *Gatherer
	Composer   *Composer
	Metrics    *metrics.TurnMetrics
	Logger     *zap.Logger
}

// Deps bundles the collaborators of an Orchestrator.
type Deps struct {
	Classifier Classifier
	Patients   PatientLookup
	Gatherer   *Gatherer
	Composer   *Composer
	Metrics    *metrics.TurnMetrics
	Logger     *zap.Logger
}

// NewOrchestrator constructs an Orchestrator.  A nil Classifier defaults to
// the keyword classifier.
func NewOrchestrator(d Deps) *Orchestrator {
	if d.Classifier == nil {
		d.Classifier = NewKeywordClassifier(nil, 0)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Orchestrator{
		Classifier: d.Classifier,
		Patients:   d.Patients,
		Gatherer:   d.Gatherer,
		Composer:   d.Composer,
		Metrics:    d.Metrics,
		Logger:     d.Logger,
	}
}

// TurnResult is the reply to one turn together with the transcript length
// right after the reply was appended.
type TurnResult struct {
	pkg.ComposedReply
	TranscriptLength int
}

// HandleTurn appends the user turn, produces the reply and appends it.
// Failures of the directory, retriever, web search and generator are all
// answered in-band, so the only error is ErrNilSession.
func (o *Orchestrator) HandleTurn(ctx context.Context, s *Session, text string) (TurnResult, error) {
	if s == nil {
		return TurnResult{}, ErrNilSession
	}
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.append(pkg.RoleUser, text)

	route := o.Classifier.Classify(text)
	o.Metrics.ObserveTurn(string(route))

	var reply pkg.ComposedReply
	switch route {
	case pkg.NameLookup:
		reply = o.lookup(ctx, text)
	default:
		reply = o.answer(ctx, s.ID, text)
	}
	if reply.Citations == nil {
		reply.Citations = []string{}
	}

	n := s.append(pkg.RoleAssistant, reply.Text)
	return TurnResult{ComposedReply: reply, TranscriptLength: n}, nil
}

func (o *Orchestrator) lookup(ctx context.Context, text string) pkg.ComposedReply {
	if o.Patients == nil {
		return pkg.ComposedReply{Text: (&directory.NotFoundError{Query: strings.TrimSpace(text)}).Error()}
	}
	rec, err := o.Patients.Lookup(ctx, text)
	if err != nil {
		// NotFoundError renders the user-facing message.
		return pkg.ComposedReply{Text: err.Error()}
	}
	return pkg.ComposedReply{Text: fmt.Sprintf(FoundReply, rec.DisplayName(), orUnknown(rec.DischargeDate), orUnknown(rec.PrimaryDiagnosis))}
}

func (o *Orchestrator) answer(ctx context.Context, sessionID, question string) pkg.ComposedReply {
	var evidence []pkg.EvidenceItem
	if o.Gatherer != nil {
		items, err := o.Gatherer.Gather(ctx, question)
		if err != nil && !errors.Is(err, ErrInsufficientEvidence) {
			o.Logger.Warn("gather evidence", zap.String("session", sessionID), zap.Error(err))
		}
		evidence = items
	}

	if o.Composer == nil {
		return pkg.ComposedReply{Text: ApologyReply}
	}
	reply, err := o.Composer.Compose(ctx, question, evidence)
	if err != nil {
		o.Metrics.ObserveGenerationFailure()
		o.Logger.Error("compose reply", zap.String("session", sessionID), zap.Error(err))
		return pkg.ComposedReply{Text: ApologyReply}
	}
	return reply
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownValue
	}
	return s
}
