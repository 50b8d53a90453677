package predictions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nflpicks/tracker/internal/apperr"
	"nflpicks/tracker/internal/debounce"
	"nflpicks/tracker/internal/models"
	"nflpicks/tracker/internal/storage"

	"github.com/rs/zerolog/log"
)

// State is the application's prediction state. The Store owns it; readers
// get copies.
type State struct {
	Games       map[string]string
	TeamRecords map[string]models.Record
	Postseason  models.PostseasonPredictions
}

func emptyState() State {
	return State{
		Games:       map[string]string{},
		TeamRecords: map[string]models.Record{},
		Postseason:  models.NewPostseasonPredictions(),
	}
}

// ValidationHook receives the outstanding record problems after edits settle.
type ValidationHook func(problems []error)

// Option configures a Store.
type Option func(*Store)

// WithValidationHook runs hook (debounced by delay) after team-record edits.
func WithValidationHook(delay time.Duration, hook ValidationHook) Option {
	return func(s *Store) {
		s.validator = debounce.New(delay)
		s.onValidate = hook
	}
}

// Store persists predictions through a KV persistence service.
type Store struct {
	kv storage.KV

	mu    sync.RWMutex
	state State

	validator  *debounce.Debouncer
	onValidate ValidationHook
}

// NewStore loads persisted predictions. Malformed values fall back to empty
// defaults for that category.
func NewStore(ctx context.Context, kv storage.KV, opts ...Option) (*Store, error) {
	s := &Store{kv: kv, state: emptyState()}
	for _, opt := range opts {
		opt(s)
	}

	if err := loadInto(ctx, kv, storage.KeyPredictions, &s.state.Games); err != nil {
		return nil, err
	}
	if err := loadInto(ctx, kv, storage.KeyTeamRecordPredictions, &s.state.TeamRecords); err != nil {
		return nil, err
	}
	if err := loadInto(ctx, kv, storage.KeyPostseasonPredictions, &s.state.Postseason); err != nil {
		return nil, err
	}
	normalize(&s.state)

	log.Debug().
		Int("games", len(s.state.Games)).
		Int("team_records", len(s.state.TeamRecords)).
		Msg("Predictions loaded")
	return s, nil
}

func loadInto[T any](ctx context.Context, kv storage.KV, key string, dst *T) error {
	var decoded T
	_, err := storage.GetJSON(ctx, kv, key, &decoded)
	if apperr.IsDataFormat(err) {
		log.Warn().Err(err).Str("key", key).Msg("Discarding malformed predictions")
		return nil
	}
	if err != nil {
		return err
	}
	*dst = decoded
	return nil
}

func normalize(st *State) {
	if st.Games == nil {
		st.Games = map[string]string{}
	}
	if st.TeamRecords == nil {
		st.TeamRecords = map[string]models.Record{}
	}
	if st.Postseason.Conferences == nil {
		st.Postseason.Conferences = map[models.Conference]map[models.Round][]string{}
	}
}

// Get returns the predicted winner for a game.
func (s *Store) Get(gameID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.state.Games[gameID]
	return team, ok
}

// Set records team as the predicted winner of gameID. Unknown team codes are
// accepted.
func (s *Store) Set(ctx context.Context, gameID, team string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := copyStrings(s.state.Games)
	next[gameID] = team
	if err := storage.SetJSON(ctx, s.kv, storage.KeyPredictions, next); err != nil {
		return err
	}
	s.state.Games = next
	return nil
}

// Clear removes the prediction for gameID.
func (s *Store) Clear(ctx context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Games[gameID]; !ok {
		return nil
	}
	next := copyStrings(s.state.Games)
	delete(next, gameID)
	if err := storage.SetJSON(ctx, s.kv, storage.KeyPredictions, next); err != nil {
		return err
	}
	s.state.Games = next
	return nil
}

// GetAll returns a copy of every game prediction.
func (s *Store) GetAll() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyStrings(s.state.Games)
}

// TeamRecord returns the predicted record for a team.
func (s *Store) TeamRecord(code string) (models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.state.TeamRecords[code]
	return rec, ok
}

// SetTeamRecord saves a record prediction. Validation problems are returned
// for display but never prevent saving.
func (s *Store) SetTeamRecord(ctx context.Context, code string, rec models.Record) ([]string, error) {
	s.mu.Lock()
	next := copyRecords(s.state.TeamRecords)
	next[code] = rec
	if err := storage.SetJSON(ctx, s.kv, storage.KeyTeamRecordPredictions, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.state.TeamRecords = next
	s.mu.Unlock()

	s.scheduleValidation()

	if vErr, ok := apperr.AsValidationError(models.ValidateRecordPrediction(code, rec)); ok {
		return vErr.Problems, nil
	}
	return nil, nil
}

// ClearTeamRecord removes a record prediction.
func (s *Store) ClearTeamRecord(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.TeamRecords[code]; !ok {
		return nil
	}
	next := copyRecords(s.state.TeamRecords)
	delete(next, code)
	if err := storage.SetJSON(ctx, s.kv, storage.KeyTeamRecordPredictions, next); err != nil {
		return err
	}
	s.state.TeamRecords = next
	return nil
}

// TeamRecords returns a copy of every record prediction.
func (s *Store) TeamRecords() map[string]models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRecords(s.state.TeamRecords)
}

// RecordProblems validates every record prediction, sorted by team.
func (s *Store) RecordProblems() []error {
	records := s.TeamRecords()
	codes := make([]string, 0, len(records))
	for code := range records {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var problems []error
	for _, code := range codes {
		if err := models.ValidateRecordPrediction(code, records[code]); err != nil {
			problems = append(problems, err)
		}
	}
	return problems
}

func (s *Store) scheduleValidation() {
	if s.validator == nil || s.onValidate == nil {
		return
	}
	s.validator.Schedule(func() {
		s.onValidate(s.RecordProblems())
	})
}

// Postseason returns a copy of the postseason bracket.
func (s *Store) Postseason() models.PostseasonPredictions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Postseason.Clone()
}

// SetPostseason replaces the whole postseason bracket.
func (s *Store) SetPostseason(ctx context.Context, p models.PostseasonPredictions) error {
	next := p.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writePostseasonLocked(ctx, next)
}

// SetPostseasonRound replaces the slots of one conference round.
func (s *Store) SetPostseasonRound(ctx context.Context, conf models.Conference, round models.Round, slots []string) error {
	if !conf.Valid() {
		return fmt.Errorf("unknown conference %q", conf)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Postseason.Clone()
	if next.Conferences[conf] == nil {
		next.Conferences[conf] = map[models.Round][]string{}
	}
	next.Conferences[conf][round] = append([]string(nil), slots...)
	return s.writePostseasonLocked(ctx, next)
}

// SetSuperBowl replaces the Super Bowl slots.
func (s *Store) SetSuperBowl(ctx context.Context, slots []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Postseason.Clone()
	next.SuperBowl = append([]string(nil), slots...)
	return s.writePostseasonLocked(ctx, next)
}

func (s *Store) writePostseasonLocked(ctx context.Context, next models.PostseasonPredictions) error {
	if next.Conferences == nil {
		next.Conferences = map[models.Conference]map[models.Round][]string{}
	}
	if err := storage.SetJSON(ctx, s.kv, storage.KeyPostseasonPredictions, next); err != nil {
		return err
	}
	s.state.Postseason = next
	return nil
}

// Snapshot captures the current state as a cloud payload stamped with now.
func (s *Store) Snapshot(now time.Time) models.Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Payload{
		Predictions:           copyStrings(s.state.Games),
		PostseasonPredictions: s.state.Postseason.Clone(),
		TeamRecordPredictions: copyRecords(s.state.TeamRecords),
		Timestamp:             now.UTC(),
		Version:               models.PayloadVersion,
	}
}

// Replace adopts payload wholesale. If persisting any category fails, the
// categories already written are rolled back and in-memory state is kept.
func (s *Store) Replace(ctx context.Context, payload models.Payload) error {
	incoming := payload.Clone()
	next := State{
		Games:       incoming.Predictions,
		TeamRecords: incoming.TeamRecordPredictions,
		Postseason:  incoming.PostseasonPredictions,
	}
	normalize(&next)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	writes := []struct {
		key       string
		next, old any
	}{
		{storage.KeyPredictions, next.Games, prev.Games},
		{storage.KeyTeamRecordPredictions, next.TeamRecords, prev.TeamRecords},
		{storage.KeyPostseasonPredictions, next.Postseason, prev.Postseason},
	}
	for i, w := range writes {
		if err := storage.SetJSON(ctx, s.kv, w.key, w.next); err != nil {
			for _, done := range writes[:i] {
				if rbErr := storage.SetJSON(ctx, s.kv, done.key, done.old); rbErr != nil {
					log.Error().Err(rbErr).Str("key", done.key).Msg("Failed to roll back predictions")
				}
			}
			return fmt.Errorf("failed to replace predictions: %w", err)
		}
	}
	s.state = next
	return nil
}

// ClearAll removes every prediction.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.Replace(ctx, models.Payload{})
}

// Close cancels pending debounced validation.
func (s *Store) Close() {
	if s.validator != nil {
		s.validator.Stop()
	}
}

func copyStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyRecords(in map[string]models.Record) map[string]models.Record {
	out := make(map[string]models.Record, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
