// Package submission drives one upload through validation, deduplication,
// analysis and persistence.
//
// A submission row is created pending only after the subject and quota checks
// pass and no duplicate exists. From then on it ends in exactly one of
// success or failed.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/analysis"
	"github.com/apexgirl/reportanalyzer/internal/archive"
	"github.com/apexgirl/reportanalyzer/internal/dedupe"
	"github.com/apexgirl/reportanalyzer/internal/fingerprint"
	"github.com/apexgirl/reportanalyzer/internal/metrics"
	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/apexgirl/reportanalyzer/internal/quota"
	"github.com/apexgirl/reportanalyzer/internal/reservation"
	"github.com/apexgirl/reportanalyzer/internal/store"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Store is the persistence Process writes through.
type Store interface {
	ActiveUser(ctx context.Context, id string) (*models.User, error)
	ActiveGroup(ctx context.Context, id string) (*models.Group, error)
	CreatePending(ctx context.Context, sub *models.Submission) error
	SetArchiveKey(ctx context.Context, id, key string) error
	MarkFailed(ctx context.Context, id, reason string) error
	CompleteWithResult(ctx context.Context, id string, completion store.Completion) (*models.Result, error)
}

// Ledger validates and reports quota.
type Ledger interface {
	Validate(ctx context.Context, userID, groupID string, now time.Time) (quota.Allowance, *quota.Allowance, error)
	Snapshot(ctx context.Context, userID, groupID string, now time.Time) (*quota.Snapshot, error)
}

// Detector finds reusable results.
type Detector interface {
	Find(ctx context.Context, fingerprint string) (*dedupe.Match, error)
}

// Reserver holds in-flight slots while an upload is processed.
type Reserver interface {
	Acquire(ctx context.Context, claims ...reservation.Claim) (*reservation.Lease, int, error)
}

// Options configures a Service.
type Options struct {
	Model         string
	PromptVersion string
	Timeout       time.Duration
	Debug         bool
}

// Deps groups the collaborators of a Service. Archive and Reservations may be nil.
type Deps struct {
	Store        Store
	Ledger       Ledger
	Detector     Detector
	Gateway      analysis.Gateway
	Reservations Reserver
	Archive      archive.Archiver
}

// Service processes uploads.
type Service struct {
	store        Store
	ledger       Ledger
	detector     Detector
	gateway      analysis.Gateway
	reservations Reserver
	archive      archive.Archiver
	opts         Options
	now          func() time.Time
}

// NewService constructs a Service.
func NewService(deps Deps, opts Options) *Service {
	return &Service{
		store:        deps.Store,
		ledger:       deps.Ledger,
		detector:     deps.Detector,
		gateway:      deps.Gateway,
		reservations: deps.Reservations,
		archive:      deps.Archive,
		opts:         opts,
		now:          time.Now,
	}
}

// Process runs one upload to completion. It never returns nil.
func (s *Service) Process(ctx context.Context, req Request) *Response {
	resp := s.process(ctx, req)
	switch {
	case resp.Success && resp.IsDuplicate:
		metrics.ObserveSubmission(metrics.OutcomeDuplicate)
	case resp.Success:
		metrics.ObserveSubmission(metrics.OutcomeSuccess)
	default:
		metrics.ObserveSubmission(string(resp.ErrorKind))
	}
	return resp
}

func (s *Service) process(ctx context.Context, req Request) *Response {
	userID := strings.TrimSpace(req.UserID)
	if parsed, errParse := uuid.Parse(userID); errParse == nil {
		userID = parsed.String()
	}
	if len(req.Image) == 0 {
		return s.failure(&Error{Kind: KindBadRequest, Err: errors.New("empty image")}, msgNoImage)
	}

	if _, errUser := s.store.ActiveUser(ctx, userID); errUser != nil {
		if errors.Is(errUser, store.ErrNotFound) {
			log.WithField("user_id", userID).Warn("upload rejected: user not found or deleted")
			return s.failure(&Error{Kind: KindSubjectNotFound, Err: errUser}, msgUserNotFound)
		}
		return s.failure(&Error{Kind: KindPersistenceError, Err: errUser}, msgProcessingFailed)
	}

	groupID, groupFailure := s.resolveGroup(ctx, req.GroupID)
	if groupFailure != nil {
		return groupFailure
	}

	now := s.now().UTC()
	userAllowance, groupAllowance, errQuota := s.ledger.Validate(ctx, userID, groupID, now)
	if errQuota != nil {
		var exceeded *quota.ExceededError
		if errors.As(errQuota, &exceeded) {
			log.WithFields(log.Fields{
				"user_id":  userID,
				"group_id": groupID,
				"scope":    exceeded.Scope,
				"window":   exceeded.Window,
			}).Info("upload rejected: quota exceeded")
			return s.quotaFailure(exceeded.Scope, exceeded.Window, quota.NewSnapshot(userAllowance, groupAllowance))
		}
		if errors.Is(errQuota, quota.ErrSubjectNotFound) {
			return s.failure(&Error{Kind: KindSubjectNotFound, Err: errQuota}, msgUserNotFound)
		}
		return s.failure(&Error{Kind: KindPersistenceError, Err: errQuota}, msgProcessingFailed)
	}
	snapshot := quota.NewSnapshot(userAllowance, groupAllowance)

	hash := fingerprint.Compute(req.Image)
	match, errFind := s.detector.Find(ctx, hash)
	if errFind != nil {
		return s.failure(&Error{Kind: KindPersistenceError, Err: errFind}, msgProcessingFailed)
	}
	if match != nil {
		log.WithFields(log.Fields{
			"user_id":     userID,
			"fingerprint": hash,
			"original_id": match.SubmissionID,
		}).Info("duplicate upload, reusing existing result")
		return &Response{
			Success:          true,
			Status:           models.SubmissionSuccess,
			BattleData:       match.Report,
			IsDuplicate:      true,
			OriginalUploadID: match.SubmissionID,
			ExistingResultID: match.ResultID,
			TokensUsed:       match.Report.TokensUsed,
			EstimatedCost:    match.Report.EstimatedCost,
			RemainingQuota:   snapshot,
		}
	}

	lease, failure := s.reserve(ctx, userID, groupID, userAllowance, groupAllowance, snapshot)
	if failure != nil {
		return failure
	}
	defer lease.Release(context.WithoutCancel(ctx))

	sub := &models.Submission{
		ImageHash:     hash,
		UserID:        userID,
		ChannelID:     strings.TrimSpace(req.ChannelID),
		MessageID:     strings.TrimSpace(req.MessageID),
		AnalysisModel: s.opts.Model,
		PromptVersion: s.opts.PromptVersion,
	}
	if groupID != "" {
		sub.GroupID = &groupID
	}
	if errCreate := s.store.CreatePending(ctx, sub); errCreate != nil {
		resp := s.failure(&Error{Kind: KindPersistenceError, Err: errCreate}, msgProcessingFailed)
		resp.RemainingQuota = snapshot
		return resp
	}
	log.WithFields(log.Fields{"upload_id": sub.ID, "user_id": userID, "fingerprint": hash}).Info("upload pending")

	return s.analyze(ctx, sub, req, groupID, snapshot)
}

// analyze owns a pending submission and settles it.
func (s *Service) analyze(ctx context.Context, sub *models.Submission, req Request, groupID string, snapshot *quota.Snapshot) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"upload_id": sub.ID, "panic": r}).Error("upload processing panicked")
			s.markFailed(ctx, sub.ID, fmt.Sprintf("unexpected error: %v", r))
			resp = s.settledFailure(&Error{Kind: KindPersistenceError, Err: fmt.Errorf("panic: %v", r)}, msgProcessingFailed, sub.ID, snapshot)
		}
	}()

	s.archiveImage(ctx, sub, req)

	gatewayCtx, cancel := ctx, context.CancelFunc(func() {})
	if s.opts.Timeout > 0 {
		gatewayCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
	}
	defer cancel()
	started := time.Now()
	outcome, errAnalyze := s.gateway.Analyze(gatewayCtx, req.Image)
	if errAnalyze == nil && (outcome == nil || (!outcome.Invalid && outcome.Report == nil)) {
		errAnalyze = analysis.ErrEmptyResponse
	}

	if errAnalyze != nil {
		metrics.ObserveGateway("error", time.Since(started), 0)
		log.WithError(errAnalyze).WithField("upload_id", sub.ID).Warn("analysis failed")
		s.markFailed(ctx, sub.ID, "analysis failed: "+errAnalyze.Error())
		return s.settledFailure(&Error{Kind: KindGatewayError, Err: errAnalyze}, msgAnalysisFailed, sub.ID, snapshot)
	}
	if outcome.Invalid {
		metrics.ObserveGateway("invalid", time.Since(started), outcome.Usage.TotalTokens)
		log.WithFields(log.Fields{"upload_id": sub.ID, "reason": outcome.InvalidReason}).Info("image rejected by analysis")
		s.markFailed(ctx, sub.ID, "invalid image: "+outcome.InvalidReason)
		return s.settledFailure(&Error{Kind: KindInvalidInput, Err: errors.New(outcome.InvalidReason)}, msgInvalidImage, sub.ID, snapshot)
	}
	metrics.ObserveGateway("ok", time.Since(started), outcome.Usage.TotalTokens)

	report := outcome.Report
	applyIdentity(report, req)
	report.TokensUsed = outcome.Usage.TotalTokens
	report.EstimatedCost = outcome.Cost

	result, errComplete := s.store.CompleteWithResult(ctx, sub.ID, store.Completion{
		Result:        analysis.ToResult(report, analysis.ExtractionVersion(s.opts.PromptVersion)),
		TokenEstimate: report.TokensUsed,
		EstimatedCost: report.EstimatedCost,
	})
	if errComplete != nil {
		log.WithError(errComplete).WithField("upload_id", sub.ID).Error("persist result failed")
		s.markFailed(ctx, sub.ID, "persist result: "+errComplete.Error())
		return s.settledFailure(&Error{Kind: KindPersistenceError, Err: errComplete}, msgProcessingFailed, sub.ID, snapshot)
	}
	report.ResultID = result.ID

	updated, errSnapshot := s.ledger.Snapshot(ctx, sub.UserID, groupID, s.now().UTC())
	if errSnapshot != nil {
		log.WithError(errSnapshot).WithField("upload_id", sub.ID).Warn("recompute quota snapshot failed")
		updated = snapshot
	}

	log.WithFields(log.Fields{
		"upload_id": sub.ID,
		"tokens":    report.TokensUsed,
		"cost":      fmt.Sprintf("%.6f", report.EstimatedCost),
	}).Info("upload processed")

	return &Response{
		Success:        true,
		UploadID:       sub.ID,
		Status:         models.SubmissionSuccess,
		BattleData:     report,
		TokensUsed:     report.TokensUsed,
		EstimatedCost:  report.EstimatedCost,
		RemainingQuota: updated,
	}
}

// resolveGroup ignores malformed ids and rejects unknown well-formed ones.
func (s *Service) resolveGroup(ctx context.Context, raw string) (string, *Response) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, errParse := uuid.Parse(raw)
	if errParse != nil {
		log.WithField("group_id", raw).Warn("ignoring malformed group id")
		return "", nil
	}
	groupID := parsed.String()
	if _, errGroup := s.store.ActiveGroup(ctx, groupID); errGroup != nil {
		if errors.Is(errGroup, store.ErrNotFound) {
			log.WithField("group_id", groupID).Warn("upload rejected: group not found or deleted")
			return "", s.failure(&Error{Kind: KindSubjectNotFound, Scope: models.ScopeGroup, Err: errGroup}, msgGroupNotFound)
		}
		return "", s.failure(&Error{Kind: KindPersistenceError, Err: errGroup}, msgProcessingFailed)
	}
	return groupID, nil
}

// reserve takes in-flight slots for each active scope, then re-reads quota so
// committed plus in-flight uploads never exceed a limit.
func (s *Service) reserve(ctx context.Context, userID, groupID string, user quota.Allowance, group *quota.Allowance, snapshot *quota.Snapshot) (*reservation.Lease, *Response) {
	if s.reservations == nil {
		return nil, nil
	}
	claims := []reservation.Claim{{Key: reservation.KeyFor(models.ScopeIndividual, userID), Limit: user.Headroom()}}
	allowances := []quota.Allowance{user}
	if group != nil {
		claims = append(claims, reservation.Claim{Key: reservation.KeyFor(models.ScopeGroup, groupID), Limit: group.Headroom()})
		allowances = append(allowances, *group)
	}
	lease, denied, errAcquire := s.reservations.Acquire(ctx, claims...)
	if errAcquire != nil {
		resp := s.failure(&Error{Kind: KindPersistenceError, Err: errAcquire}, msgProcessingFailed)
		resp.RemainingQuota = snapshot
		return nil, resp
	}
	if denied >= 0 {
		return nil, s.concurrencyFailure(userID, allowances[denied], snapshot)
	}

	freshUser, freshGroup, errQuota := s.ledger.Validate(ctx, userID, groupID, s.now().UTC())
	if errQuota != nil {
		lease.Release(context.WithoutCancel(ctx))
		var exceeded *quota.ExceededError
		if errors.As(errQuota, &exceeded) {
			return nil, s.quotaFailure(exceeded.Scope, exceeded.Window, quota.NewSnapshot(freshUser, freshGroup))
		}
		resp := s.failure(&Error{Kind: KindPersistenceError, Err: errQuota}, msgProcessingFailed)
		resp.RemainingQuota = snapshot
		return nil, resp
	}
	fresh := []quota.Allowance{freshUser}
	if freshGroup != nil {
		fresh = append(fresh, *freshGroup)
	}
	for i, claim := range claims {
		if i >= len(fresh) || fresh[i].Unlimited {
			continue
		}
		if lease.InFlight(claim.Key) > fresh[i].Headroom() {
			lease.Release(context.WithoutCancel(ctx))
			return nil, s.concurrencyFailure(userID, fresh[i], quota.NewSnapshot(freshUser, freshGroup))
		}
	}
	return lease, nil
}

func (s *Service) concurrencyFailure(userID string, tight quota.Allowance, snapshot *quota.Snapshot) *Response {
	window := quota.WindowDaily
	if tight.MonthlyRemaining < tight.DailyRemaining {
		window = quota.WindowMonthly
	}
	log.WithFields(log.Fields{"user_id": userID, "scope": tight.Scope, "window": window}).Info("upload rejected: concurrent uploads would exceed quota")
	return s.quotaFailure(tight.Scope, window, snapshot)
}

func (s *Service) archiveImage(ctx context.Context, sub *models.Submission, req Request) {
	if s.archive == nil {
		return
	}
	key, errPut := s.archive.Put(ctx, sub.ImageHash, req.Image, req.ContentType)
	if errPut != nil {
		log.WithError(errPut).WithField("upload_id", sub.ID).Warn("archive image failed")
		return
	}
	if key == "" {
		return
	}
	if errSet := s.store.SetArchiveKey(ctx, sub.ID, key); errSet != nil {
		log.WithError(errSet).WithField("upload_id", sub.ID).Warn("record archive key failed")
		return
	}
	sub.ArchiveKey = key
}

// markFailed settles a pending submission even when ctx is already cancelled.
func (s *Service) markFailed(ctx context.Context, id, reason string) {
	if errMark := s.store.MarkFailed(context.WithoutCancel(ctx), id, reason); errMark != nil {
		log.WithError(errMark).WithField("upload_id", id).Error("mark upload failed")
	}
}

func (s *Service) failure(err *Error, message string) *Response {
	if s.opts.Debug && err.Err != nil {
		message = fmt.Sprintf("%s (%v)", message, err.Err)
	}
	return &Response{
		Success:      false,
		ErrorKind:    err.Kind,
		ErrorMessage: message,
		Err:          err,
	}
}

func (s *Service) settledFailure(err *Error, message, uploadID string, snapshot *quota.Snapshot) *Response {
	resp := s.failure(err, message)
	resp.UploadID = uploadID
	resp.Status = models.SubmissionFailed
	resp.RemainingQuota = snapshot
	return resp
}

func (s *Service) quotaFailure(scope models.Scope, window quota.Window, snapshot *quota.Snapshot) *Response {
	metrics.ObserveQuotaRejection(string(scope), string(window))
	err := &Error{Kind: KindQuotaExceeded, Scope: scope, Window: window}
	return &Response{
		Success:        false,
		ErrorKind:      KindQuotaExceeded,
		ErrorMessage:   quotaMessage(scope, window),
		QuotaScope:     scope,
		QuotaWindow:    window,
		RemainingQuota: snapshot,
		Err:            err,
	}
}

// applyIdentity lets caller-supplied player ids win over extracted ones.
func applyIdentity(report *analysis.Report, req Request) {
	if id := strings.TrimSpace(req.PrimaryInGameID); id != "" {
		report.Player.InGamePlayerID = id
	}
	if id := strings.TrimSpace(req.OpposingInGameID); id != "" {
		report.Enemy.InGamePlayerID = id
	}
}
