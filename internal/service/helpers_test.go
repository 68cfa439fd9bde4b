package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/globot/syncbot/internal/model"
	"github.com/globot/syncbot/internal/translate"
	logger "github.com/globot/syncbot/middleware/log"
)

// In-memory fakes for the repositories and external collaborators.

type memBindingRepo struct {
	mu       sync.Mutex
	bindings map[string]*model.ChannelBinding
	settings map[string]*model.GuildSettings
}

func newMemBindingRepo() *memBindingRepo {
	return &memBindingRepo{
		bindings: make(map[string]*model.ChannelBinding),
		settings: make(map[string]*model.GuildSettings),
	}
}

func (r *memBindingRepo) Create(_ context.Context, binding *model.ChannelBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bindings[binding.ChannelID]; ok {
		return fmt.Errorf("duplicate key: %s", binding.ChannelID)
	}
	b := *binding
	r.bindings[binding.ChannelID] = &b
	return nil
}

func (r *memBindingRepo) Delete(_ context.Context, channelID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bindings[channelID]; !ok {
		return false, nil
	}
	delete(r.bindings, channelID)
	return true, nil
}

func (r *memBindingRepo) FindByChannel(_ context.Context, channelID string) (*model.ChannelBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[channelID]
	if !ok {
		return nil, nil
	}
	c := *b
	return &c, nil
}

func (r *memBindingRepo) FindByGroup(_ context.Context, groupID string) ([]*model.ChannelBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ChannelBinding
	for _, b := range r.bindings {
		if b.GroupID == groupID {
			c := *b
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memBindingRepo) FindAll(_ context.Context) ([]*model.ChannelBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ChannelBinding
	for _, b := range r.bindings {
		c := *b
		out = append(out, &c)
	}
	return out, nil
}

func (r *memBindingRepo) UpsertGuildSettings(_ context.Context, settings *model.GuildSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := *settings
	r.settings[settings.GuildID] = &s
	return nil
}

func (r *memBindingRepo) FindGuildSettings(_ context.Context, guildID string) (*model.GuildSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[guildID]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

type memWarningRepo struct {
	mu      sync.Mutex
	records map[string]*model.WarningRecord
}

func newMemWarningRepo() *memWarningRepo {
	return &memWarningRepo{records: make(map[string]*model.WarningRecord)}
}

func (r *memWarningRepo) Increment(_ context.Context, guildID, userID, category string, at time.Time) (*model.WarningRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := guildID + ":" + userID
	rec, ok := r.records[key]
	if !ok {
		rec = &model.WarningRecord{GuildID: guildID, UserID: userID}
		r.records[key] = rec
	}
	rec.Count++
	rec.LastCategory = category
	rec.LastAt = at
	c := *rec
	return &c, nil
}

func (r *memWarningRepo) Find(_ context.Context, guildID, userID string) (*model.WarningRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[guildID+":"+userID]
	if !ok {
		return nil, nil
	}
	c := *rec
	return &c, nil
}

func (r *memWarningRepo) TotalCount(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, rec := range r.records {
		total += rec.Count
	}
	return total, nil
}

// fakeTranslator prefixes text with the target language, which makes the
// per-peer translation visible in assertions. Languages listed in down are
// unavailable.
type fakeTranslator struct {
	mu        sync.Mutex
	supported []string
	down      map[string]bool
	calls     int
}

func newFakeTranslator(supported ...string) *fakeTranslator {
	return &fakeTranslator{supported: supported, down: make(map[string]bool)}
}

func (f *fakeTranslator) Translate(_ context.Context, text, source, target string) (translate.Result, error) {
	f.mu.Lock()
	f.calls++
	down := f.down[target]
	f.mu.Unlock()
	if down {
		return translate.Result{}, translate.ErrTranslationUnavailable
	}
	if source == target {
		return translate.Result{Text: text, DetectedSource: source}, nil
	}
	// Pretend every input is English.
	if target == "en" {
		return translate.Result{Text: text, DetectedSource: "en"}, nil
	}
	return translate.Result{Text: target + ":" + text, DetectedSource: "en"}, nil
}

func (f *fakeTranslator) Languages(context.Context) ([]string, error) {
	return f.supported, nil
}

// fakeClassifier flags texts present in toxic with score 0.9 on "toxic".
type fakeClassifier struct {
	mu    sync.Mutex
	toxic map[string]bool
	err   error
	calls int
}

func newFakeClassifier() *fakeClassifier {
	return &fakeClassifier{toxic: make(map[string]bool)}
}

func (f *fakeClassifier) Classify(_ context.Context, text string) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	scores := map[string]float64{
		"toxic": 0.01, "severe_toxic": 0.01, "obscene": 0.01,
		"threat": 0.01, "insult": 0.01, "identity_hate": 0.01,
	}
	if f.toxic[text] {
		scores["toxic"] = 0.9
		scores["insult"] = 0.7
	}
	return scores, nil
}

type deliveredMessage struct {
	Handle      string
	Text        string
	DisplayName string
}

// fakeDeliverer records deliveries; handles listed in fail return the mapped
// error.
type fakeDeliverer struct {
	mu         sync.Mutex
	delivered  []deliveredMessage
	channelLog map[string][]string
	notices    map[string][]string
	fail       map[string]error
	notifyErr  error
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{
		channelLog: make(map[string][]string),
		notices:    make(map[string][]string),
		fail:       make(map[string]error),
	}
}

func (f *fakeDeliverer) Deliver(_ context.Context, handle, text string, _ []string, displayName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[handle]; ok {
		return err
	}
	f.delivered = append(f.delivered, deliveredMessage{Handle: handle, Text: text, DisplayName: displayName})
	return nil
}

func (f *fakeDeliverer) NotifyUser(_ context.Context, userID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notifyErr != nil {
		return f.notifyErr
	}
	f.notices[userID] = append(f.notices[userID], text)
	return nil
}

func (f *fakeDeliverer) PostToChannel(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelLog[channelID] = append(f.channelLog[channelID], text)
	return nil
}

func (f *fakeDeliverer) textsFor(handle string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, d := range f.delivered {
		if d.Handle == handle {
			out = append(out, d.Text)
		}
	}
	return out
}

func testLogger() *logger.Logger {
	return logger.NewNop()
}
