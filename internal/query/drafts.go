package query

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/smartselect/shortlist/internal/model"
	"github.com/smartselect/shortlist/internal/storage"
	logx "github.com/smartselect/shortlist/pkg/logger"
)

// Drafts holds the unsubmitted questionnaire and persists it on every
// change so it can be resumed after a restart.
type Drafts struct {
	mu      sync.Mutex
	draft   model.Draft
	storage storage.Store
}

func NewDrafts(st storage.Store) *Drafts {
	return &Drafts{storage: st, draft: emptyDraft()}
}

func emptyDraft() model.Draft {
	return model.Draft{Answers: model.Answers{}, CustomInputs: map[string]string{}}
}

// Load replaces the in-memory draft with the persisted one, if any.
func (d *Drafts) Load(ctx context.Context) model.Draft {
	var saved model.Draft
	found, err := d.storage.Get(ctx, storage.KeyCachedAnswers, &saved)
	if err != nil {
		logx.Warn().Err(err).Msg("failed to read questionnaire draft")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if found {
		if saved.Answers == nil {
			saved.Answers = model.Answers{}
		}
		if saved.CustomInputs == nil {
			saved.CustomInputs = map[string]string{}
		}
		d.draft = saved
	}
	return d.snapshotLocked()
}

func (d *Drafts) Draft() model.Draft {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// SetAnswer records an answer. An empty answer removes the question, and
// dropping "Other" from an answer drops its custom input too.
func (d *Drafts) SetAnswer(ctx context.Context, questionID string, v model.AnswerValue) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v.Empty() {
		delete(d.draft.Answers, questionID)
	} else {
		if v.IsMulti {
			v.Multi = slices.Clone(v.Multi)
		}
		d.draft.Answers[questionID] = v
	}
	if !v.Contains(model.OtherOption) {
		delete(d.draft.CustomInputs, questionID)
	}
	return d.persistLocked(ctx)
}

// SetCustomInput stores the free text behind an "Other" choice. A
// single-choice answer becomes "Other"; a multi-choice answer gains it.
func (d *Drafts) SetCustomInput(ctx context.Context, questionID string, kind model.QuestionKind, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draft.CustomInputs[questionID] = text

	cur := d.draft.Answers[questionID]
	switch kind {
	case model.SingleChoice:
		if cur.IsMulti || cur.Single != model.OtherOption {
			d.draft.Answers[questionID] = model.Single(model.OtherOption)
		}
	case model.MultiChoice:
		if !cur.IsMulti || !slices.Contains(cur.Multi, model.OtherOption) {
			multi := slices.Clone(cur.Multi)
			if !cur.IsMulti && cur.Single != "" {
				multi = []string{cur.Single}
			}
			d.draft.Answers[questionID] = model.Multi(append(multi, model.OtherOption)...)
		}
	}
	return d.persistLocked(ctx)
}

// Compose returns the answers to submit: each "Other" choice is replaced by
// its custom text when one was entered.
func (d *Drafts) Compose() model.Answers {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.draft.Answers.Clone()
	if out == nil {
		out = model.Answers{}
	}
	for id, text := range d.draft.CustomInputs {
		text = strings.TrimSpace(text)
		v, ok := out[id]
		if !ok || text == "" {
			continue
		}
		if v.IsMulti {
			for i, opt := range v.Multi {
				if opt == model.OtherOption {
					v.Multi[i] = text
				}
			}
		} else if v.Single == model.OtherOption {
			v.Single = text
		}
		out[id] = v
	}
	return out
}

func (d *Drafts) Clear(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draft = emptyDraft()
	if err := d.storage.Delete(context.WithoutCancel(ctx), storage.KeyCachedAnswers); err != nil {
		logx.Warn().Err(err).Str("key", storage.KeyCachedAnswers).Msg("failed to delete questionnaire draft")
		return err
	}
	return nil
}

func (d *Drafts) persistLocked(ctx context.Context) error {
	if err := d.storage.Set(context.WithoutCancel(ctx), storage.KeyCachedAnswers, d.draft); err != nil {
		logx.Warn().Err(err).Str("key", storage.KeyCachedAnswers).Msg("failed to persist questionnaire draft")
		return err
	}
	return nil
}

func (d *Drafts) snapshotLocked() model.Draft {
	custom := make(map[string]string, len(d.draft.CustomInputs))
	for k, v := range d.draft.CustomInputs {
		custom[k] = v
	}
	return model.Draft{Answers: d.draft.Answers.Clone(), CustomInputs: custom}
}
