package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/wordarena/arena-backend/models"
	"github.com/wordarena/arena-backend/repositories"
)

// In-memory repository fakes shared by the service tests. They mimic the
// constraint behavior of the Postgres implementations: conditional updates,
// uniqueness conflicts as sentinel errors, at-most-once completions.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func brtLocation() *time.Location {
	return time.FixedZone("-03", -3*60*60)
}

type fakeCompetitionRepo struct {
	competitions map[int]*models.Competition
	nextID       int

	updateStatusErr map[int]error // per-id injected UpdateStatusIf failure
}

func newFakeCompetitionRepo() *fakeCompetitionRepo {
	return &fakeCompetitionRepo{
		competitions:    make(map[int]*models.Competition),
		nextID:          1,
		updateStatusErr: make(map[int]error),
	}
}

func (r *fakeCompetitionRepo) add(c models.Competition) *models.Competition {
	c.ID = r.nextID
	r.nextID++
	stored := c
	r.competitions[stored.ID] = &stored
	return &stored
}

func (r *fakeCompetitionRepo) Create(_ context.Context, c *models.Competition) error {
	for _, existing := range r.competitions {
		if existing.Kind == c.Kind && existing.Title == c.Title {
			return repositories.ErrCompetitionTitleConflict
		}
	}
	c.ID = r.nextID
	r.nextID++
	stored := *c
	r.competitions[c.ID] = &stored
	return nil
}

func (r *fakeCompetitionRepo) GetByID(_ context.Context, id int) (*models.Competition, error) {
	c, ok := r.competitions[id]
	if !ok {
		return nil, repositories.ErrCompetitionNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCompetitionRepo) List(_ context.Context, filter repositories.ListCompetitionsFilter) ([]models.Competition, error) {
	var out []models.Competition
	for _, c := range r.sorted() {
		if filter.Kind != nil && c.Kind != *filter.Kind {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *fakeCompetitionRepo) Update(_ context.Context, c *models.Competition) error {
	if _, ok := r.competitions[c.ID]; !ok {
		return repositories.ErrCompetitionNotFound
	}
	stored := *c
	r.competitions[c.ID] = &stored
	return nil
}

func (r *fakeCompetitionRepo) UpdateStatusIf(_ context.Context, _ repositories.SQLExecutor, id int, expected, next models.CompetitionStatus) (bool, error) {
	if err, ok := r.updateStatusErr[id]; ok {
		return false, err
	}
	c, ok := r.competitions[id]
	if !ok {
		return false, repositories.ErrCompetitionNotFound
	}
	if c.Status != expected {
		return false, nil
	}
	c.Status = next
	return true, nil
}

func (r *fakeCompetitionRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.competitions[id]; !ok {
		return repositories.ErrCompetitionNotFound
	}
	delete(r.competitions, id)
	return nil
}

func (r *fakeCompetitionRepo) ListNonTerminal(_ context.Context, _ repositories.SQLExecutor) ([]*models.Competition, error) {
	var out []*models.Competition
	for _, c := range r.sorted() {
		if !c.Status.IsTerminal() {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeCompetitionRepo) NextScheduled(_ context.Context, _ repositories.SQLExecutor, kind models.CompetitionKind, now time.Time) (*models.Competition, error) {
	var best *models.Competition
	for _, c := range r.sorted() {
		if c.Kind != kind || c.Status != models.StatusScheduled || c.EndAt.Before(now) {
			continue
		}
		if best == nil || c.StartAt.Before(best.StartAt) {
			best = c
		}
	}
	if best == nil {
		return nil, repositories.ErrCompetitionNotFound
	}
	copied := *best
	return &copied, nil
}

func (r *fakeCompetitionRepo) ListByKindAndStartRange(_ context.Context, _ repositories.SQLExecutor, kind models.CompetitionKind, from, to time.Time) ([]*models.Competition, error) {
	var out []*models.Competition
	for _, c := range r.sorted() {
		if c.Kind != kind || c.StartAt.Before(from) || c.StartAt.After(to) {
			continue
		}
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeCompetitionRepo) CountByKindAndStatus(_ context.Context, _ repositories.SQLExecutor, kind models.CompetitionKind, status models.CompetitionStatus) (int, error) {
	count := 0
	for _, c := range r.competitions {
		if c.Kind == kind && c.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *fakeCompetitionRepo) Count(_ context.Context, status *models.CompetitionStatus) (int, error) {
	if status == nil {
		return len(r.competitions), nil
	}
	count := 0
	for _, c := range r.competitions {
		if c.Status == *status {
			count++
		}
	}
	return count, nil
}

func (r *fakeCompetitionRepo) sorted() []*models.Competition {
	out := make([]*models.Competition, 0, len(r.competitions))
	for _, c := range r.competitions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type fakeParticipationRepo struct {
	participations []*models.Participation
	nextID         int
}

func newFakeParticipationRepo() *fakeParticipationRepo {
	return &fakeParticipationRepo{nextID: 1}
}

func (r *fakeParticipationRepo) add(competitionID, userID, score int, joinedAt time.Time) *models.Participation {
	p := &models.Participation{
		ID:            r.nextID,
		CompetitionID: competitionID,
		UserID:        userID,
		Score:         score,
		JoinedAt:      joinedAt,
	}
	r.nextID++
	r.participations = append(r.participations, p)
	return p
}

func (r *fakeParticipationRepo) find(competitionID, userID int) *models.Participation {
	for _, p := range r.participations {
		if p.CompetitionID == competitionID && p.UserID == userID {
			return p
		}
	}
	return nil
}

func (r *fakeParticipationRepo) Create(_ context.Context, p *models.Participation) error {
	if r.find(p.CompetitionID, p.UserID) != nil {
		return repositories.ErrParticipationConflict
	}
	p.ID = r.nextID
	r.nextID++
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	stored := *p
	r.participations = append(r.participations, &stored)
	return nil
}

func (r *fakeParticipationRepo) GetByCompetitionAndUser(_ context.Context, competitionID, userID int) (*models.Participation, error) {
	p := r.find(competitionID, userID)
	if p == nil {
		return nil, repositories.ErrParticipationNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeParticipationRepo) ListByCompetition(_ context.Context, _ repositories.SQLExecutor, competitionID int) ([]*models.Participation, error) {
	var out []*models.Participation
	for _, p := range r.participations {
		if p.CompetitionID == competitionID {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (r *fakeParticipationRepo) AddScore(_ context.Context, _ repositories.SQLExecutor, competitionID, userID, delta int) error {
	if delta < 0 {
		return repositories.ErrParticipationInvalidScore
	}
	p := r.find(competitionID, userID)
	if p == nil {
		return repositories.ErrParticipationNotFound
	}
	p.Score += delta
	return nil
}

func (r *fakeParticipationRepo) UpdatePosition(_ context.Context, _ repositories.SQLExecutor, competitionID, userID int, position *int) error {
	p := r.find(competitionID, userID)
	if p == nil {
		return repositories.ErrParticipationNotFound
	}
	p.Position = position
	return nil
}

func (r *fakeParticipationRepo) CountByCompetition(_ context.Context, competitionID int) (int, error) {
	count := 0
	for _, p := range r.participations {
		if p.CompetitionID == competitionID {
			count++
		}
	}
	return count, nil
}

type fakeRankingRepo struct {
	entries    map[string]map[int]models.RankingEntry // period -> user -> entry
	duplicates []models.DuplicateRanking
	upserts    int
}

func newFakeRankingRepo() *fakeRankingRepo {
	return &fakeRankingRepo{entries: make(map[string]map[int]models.RankingEntry)}
}

func (r *fakeRankingRepo) UpsertBatch(_ context.Context, _ repositories.SQLExecutor, entries []models.RankingEntry) error {
	r.upserts++
	for _, e := range entries {
		period, ok := r.entries[e.PeriodKey]
		if !ok {
			period = make(map[int]models.RankingEntry)
			r.entries[e.PeriodKey] = period
		}
		period[e.UserID] = e
	}
	return nil
}

func (r *fakeRankingRepo) ListByPeriod(_ context.Context, _ repositories.SQLExecutor, periodKey string) ([]models.RankingEntry, error) {
	period := r.entries[periodKey]
	out := make([]models.RankingEntry, 0, len(period))
	for _, e := range period {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (r *fakeRankingRepo) FindDuplicatePairs(_ context.Context) ([]models.DuplicateRanking, error) {
	return r.duplicates, nil
}

func (r *fakeRankingRepo) ExistsForPeriodAndUser(_ context.Context, periodKey string, userID int) (bool, error) {
	_, ok := r.entries[periodKey][userID]
	return ok, nil
}

func (r *fakeRankingRepo) DeleteByPeriod(_ context.Context, _ repositories.SQLExecutor, periodKey string) error {
	delete(r.entries, periodKey)
	return nil
}

func (r *fakeRankingRepo) Count(_ context.Context) (int, error) {
	total := 0
	for _, period := range r.entries {
		total += len(period)
	}
	return total, nil
}

type fakeSnapshotRepo struct {
	snapshots map[int]*models.FinalizationSnapshot // keyed by competition id
	nextID    int
}

func newFakeSnapshotRepo() *fakeSnapshotRepo {
	return &fakeSnapshotRepo{snapshots: make(map[int]*models.FinalizationSnapshot), nextID: 1}
}

func (r *fakeSnapshotRepo) Create(_ context.Context, _ repositories.SQLExecutor, s *models.FinalizationSnapshot) error {
	if _, ok := r.snapshots[s.CompetitionID]; ok {
		return repositories.ErrSnapshotAlreadyExists
	}
	s.ID = r.nextID
	r.nextID++
	s.FinalizedAt = time.Now()
	stored := *s
	r.snapshots[s.CompetitionID] = &stored
	return nil
}

func (r *fakeSnapshotRepo) GetByCompetitionID(_ context.Context, competitionID int) (*models.FinalizationSnapshot, error) {
	s, ok := r.snapshots[competitionID]
	if !ok {
		return nil, repositories.ErrSnapshotNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSnapshotRepo) ExistsForCompetition(_ context.Context, _ repositories.SQLExecutor, competitionID int) (bool, error) {
	_, ok := r.snapshots[competitionID]
	return ok, nil
}

func (r *fakeSnapshotRepo) Count(_ context.Context) (int, error) {
	return len(r.snapshots), nil
}

type fakeUserRepo struct {
	users map[int]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]*models.User)}
}

func (r *fakeUserRepo) add(id int, nickname string, totalScore int) *models.User {
	u := &models.User{ID: id, Nickname: nickname, TotalScore: totalScore}
	r.users[id] = u
	return u
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) List(_ context.Context, _ models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *fakeUserRepo) AddToTotalScore(_ context.Context, _ repositories.SQLExecutor, userID, delta int) error {
	if delta < 0 {
		return fmt.Errorf("score delta must not be negative, got %d", delta)
	}
	u, ok := r.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.TotalScore += delta
	return nil
}

func (r *fakeUserRepo) ImproveBestPosition(_ context.Context, _ repositories.SQLExecutor, userID, position int) error {
	u, ok := r.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	if u.BestPosition == nil || *u.BestPosition > position {
		p := position
		u.BestPosition = &p
	}
	return nil
}

func (r *fakeUserRepo) ResetLiveScores(_ context.Context, _ repositories.SQLExecutor, userIDs []int) (int, error) {
	affected := 0
	for _, id := range userIDs {
		if u, ok := r.users[id]; ok {
			u.TotalScore = 0
			u.BestPosition = nil
			affected++
		}
	}
	return affected, nil
}

func (r *fakeUserRepo) ListWithPositiveScore(_ context.Context) ([]int, error) {
	var out []int
	for _, u := range r.users {
		if u.TotalScore > 0 {
			out = append(out, u.ID)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (r *fakeUserRepo) SetInvitedBy(_ context.Context, userID, inviterUserID int) error {
	u, ok := r.users[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	if u.InvitedByUserID == nil {
		id := inviterUserID
		u.InvitedByUserID = &id
	}
	return nil
}

func (r *fakeUserRepo) Count(_ context.Context) (int, error) {
	return len(r.users), nil
}

type fakeAutomationLogRepo struct {
	entries []*models.AutomationLogEntry
	nextID  int
}

func newFakeAutomationLogRepo() *fakeAutomationLogRepo {
	return &fakeAutomationLogRepo{nextID: 1}
}

func (r *fakeAutomationLogRepo) Create(_ context.Context, e *models.AutomationLogEntry) error {
	e.ID = r.nextID
	r.nextID++
	stored := *e
	r.entries = append(r.entries, &stored)
	return nil
}

func (r *fakeAutomationLogRepo) MarkCompleted(_ context.Context, id int, executedAt time.Time, affectedUsers int) error {
	for _, e := range r.entries {
		if e.ID == id && e.Status == models.AutomationPending {
			e.Status = models.AutomationCompleted
			e.ExecutedAt = &executedAt
			e.AffectedUsers = affectedUsers
			return nil
		}
	}
	return repositories.ErrAutomationLogNotFound
}

func (r *fakeAutomationLogRepo) MarkFailed(_ context.Context, id int, executedAt time.Time, errorMessage string) error {
	for _, e := range r.entries {
		if e.ID == id && e.Status == models.AutomationPending {
			e.Status = models.AutomationFailed
			e.ExecutedAt = &executedAt
			e.ErrorMessage = &errorMessage
			return nil
		}
	}
	return repositories.ErrAutomationLogNotFound
}

func (r *fakeAutomationLogRepo) List(_ context.Context, limit, offset int) ([]models.AutomationLogEntry, error) {
	var out []models.AutomationLogEntry
	for _, e := range r.entries {
		out = append(out, *e)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAutomationLogRepo) CountPending(_ context.Context) (int, error) {
	count := 0
	for _, e := range r.entries {
		if e.Status == models.AutomationPending {
			count++
		}
	}
	return count, nil
}

func (r *fakeAutomationLogRepo) byType(automationType string) []*models.AutomationLogEntry {
	var out []*models.AutomationLogEntry
	for _, e := range r.entries {
		if e.Type == automationType {
			out = append(out, e)
		}
	}
	return out
}

type fakeSessionRepo struct {
	sessions map[int]*models.GameSession
	nextID   int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[int]*models.GameSession), nextID: 1}
}

func (r *fakeSessionRepo) Create(_ context.Context, s *models.GameSession) error {
	s.ID = r.nextID
	r.nextID++
	s.CreatedAt = time.Now()
	if s.Status == "" {
		s.Status = models.SessionInProgress
	}
	stored := *s
	r.sessions[s.ID] = &stored
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id int) (*models.GameSession, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, repositories.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSessionRepo) Complete(_ context.Context, _ repositories.SQLExecutor, id, score int, completedAt time.Time) error {
	s, ok := r.sessions[id]
	if !ok || s.Status != models.SessionInProgress {
		return repositories.ErrSessionNotFound
	}
	s.Score = &score
	s.Status = models.SessionCompleted
	s.CompletedAt = &completedAt
	return nil
}

func (r *fakeSessionRepo) ListOrphaned(_ context.Context) ([]models.GameSession, error) {
	var out []models.GameSession
	for _, s := range r.sessions {
		if s.Status == models.SessionCompleted && s.Score != nil && s.CompetitionID == nil {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeSessionRepo) CountCompleted(_ context.Context) (int, error) {
	count := 0
	for _, s := range r.sessions {
		if s.Status == models.SessionCompleted {
			count++
		}
	}
	return count, nil
}

type fakeInviteRepo struct {
	invites map[string]*models.Invite
	nextID  int
}

func newFakeInviteRepo() *fakeInviteRepo {
	return &fakeInviteRepo{invites: make(map[string]*models.Invite), nextID: 1}
}

func (r *fakeInviteRepo) Create(_ context.Context, inv *models.Invite) error {
	if _, ok := r.invites[inv.Code]; ok {
		return repositories.ErrInviteCodeConflict
	}
	inv.ID = r.nextID
	r.nextID++
	inv.CreatedAt = time.Now()
	stored := *inv
	r.invites[inv.Code] = &stored
	return nil
}

func (r *fakeInviteRepo) GetByCode(_ context.Context, code string) (*models.Invite, error) {
	inv, ok := r.invites[code]
	if !ok {
		return nil, repositories.ErrInviteNotFound
	}
	copied := *inv
	return &copied, nil
}

func (r *fakeInviteRepo) MarkRedeemed(_ context.Context, inviteID, userID int, redeemedAt time.Time) error {
	for _, inv := range r.invites {
		if inv.ID == inviteID {
			if inv.RedeemedByUserID != nil {
				return repositories.ErrInviteNotFound
			}
			id := userID
			at := redeemedAt
			inv.RedeemedByUserID = &id
			inv.RedeemedAt = &at
			return nil
		}
	}
	return repositories.ErrInviteNotFound
}

func (r *fakeInviteRepo) CountByInviter(_ context.Context, inviterUserID int) (int, int, error) {
	sent, joined := 0, 0
	for _, inv := range r.invites {
		if inv.InviterUserID != inviterUserID {
			continue
		}
		sent++
		if inv.RedeemedByUserID != nil {
			joined++
		}
	}
	return sent, joined, nil
}
