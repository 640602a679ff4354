package ingest

import (
	"context"
	"errors"
	"strings"

	"tendertrack/db"
	"tendertrack/models"
)

// Префиксы ключа идентичности: внешний номер или запасной ключ по названию.
const (
	refKeyPrefix   = "ref:"
	titleKeyPrefix = "title:"
)

// IdentityPolicy строит ключи идентичности записей.
type IdentityPolicy struct {
	// MatchOrganization добавляет организацию в запасной ключ.
	MatchOrganization bool
}

// Key возвращает ключ: внешний номер, если он есть, иначе название (с учетом регистра).
func (p IdentityPolicy) Key(externalID, title, organization string) string {
	if id := strings.TrimSpace(externalID); id != "" {
		return refKeyPrefix + id
	}
	key := titleKeyPrefix + title
	if p.MatchOrganization {
		key += "|org:" + organization
	}
	return key
}

// Входящая запись, проверяемая на дубликат
type Candidate struct {
	Kind         models.UploadKind
	ExternalID   string
	Title        string
	Organization string
}

// Detector проверяет кандидатов по уже сохраненным записям. Сначала ищет по
// уникальному индексу identity_key, затем по индексу названия: запись,
// загруженная раньше без номера, совпадает с той же записью из выгрузки с номером.
type Detector struct {
	store  Store
	policy IdentityPolicy
}

func NewDetector(store Store, policy IdentityPolicy) *Detector {
	return &Detector{store: store, policy: policy}
}

// Key возвращает ключ идентичности кандидата.
func (d *Detector) Key(c Candidate) string {
	return d.policy.Key(c.ExternalID, c.Title, c.Organization)
}

// titleArgs возвращает параметры запасного поиска по названию.
func (d *Detector) titleArgs(c Candidate) (title, organization, ref string) {
	if d.policy.MatchOrganization {
		organization = c.Organization
	}
	return c.Title, organization, strings.TrimSpace(c.ExternalID)
}

// IsDuplicate сообщает, сохранена ли уже запись, совпадающая по ключу или по названию.
func (d *Detector) IsDuplicate(ctx context.Context, c Candidate) (bool, error) {
	if c.Kind == models.KindResults {
		r, err := d.existingResult(ctx, c)
		return r != nil, err
	}
	t, err := d.existingTender(ctx, c)
	return t != nil, err
}

// existingTender возвращает сохраненный тендер или nil.
func (d *Detector) existingTender(ctx context.Context, c Candidate) (*models.Tender, error) {
	t, err := d.store.FindTenderByIdentity(ctx, d.Key(c))
	ok, err := found(err)
	if err != nil {
		return nil, err
	}
	if ok {
		return t, nil
	}
	if c.Title == "" {
		return nil, nil
	}
	title, org, ref := d.titleArgs(c)
	t, err = d.store.FindTenderByTitle(ctx, title, org, ref)
	if ok, err = found(err); !ok || err != nil {
		return nil, err
	}
	return t, nil
}

// existingResult возвращает сохраненный результат или nil.
func (d *Detector) existingResult(ctx context.Context, c Candidate) (*models.TenderResult, error) {
	r, err := d.store.FindResultByIdentity(ctx, d.Key(c))
	ok, err := found(err)
	if err != nil {
		return nil, err
	}
	if ok {
		return r, nil
	}
	if c.Title == "" {
		return nil, nil
	}
	title, org, ref := d.titleArgs(c)
	r, err = d.store.FindResultByTitle(ctx, title, org, ref)
	if ok, err = found(err); !ok || err != nil {
		return nil, err
	}
	return r, nil
}

func found(err error) (bool, error) {
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
